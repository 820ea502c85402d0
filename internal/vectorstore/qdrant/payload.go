package qdrant

import (
	"github.com/google/uuid"

	"github.com/A-Elshahawy/enterprise-rag/internal/domain"
)

// knownPayloadFields are the chunk fields every stored point carries. Any
// other payload key flows into the open metadata map on the way out.
var knownPayloadFields = map[string]struct{}{
	"chunk_id":    {},
	"document_id": {},
	"text":        {},
	"page_number": {},
	"char_start":  {},
	"char_end":    {},
}

// PointID maps a chunk ID onto a valid Qdrant point identifier. Qdrant only
// accepts unsigned integers or UUIDs, so the chunk ID is hashed into a
// name-based UUID; the mapping is deterministic, which is what makes upserts
// of re-ingested content overwrite existing points.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

func payloadFromChunk(chunk domain.Chunk) map[string]any {
	payload := make(map[string]any, len(chunk.Metadata)+7)
	for k, v := range chunk.Metadata {
		payload[k] = v
	}
	payload["chunk_id"] = chunk.ChunkID
	payload["document_id"] = chunk.DocumentID
	payload["text"] = chunk.Text
	payload["page_number"] = chunk.PageNumber
	payload["chunk_index"] = chunk.ChunkIndex
	payload["char_start"] = chunk.CharStart
	payload["char_end"] = chunk.CharEnd
	return payload
}

func resultFromPayload(payload map[string]any, score float64) domain.SearchResult {
	result := domain.SearchResult{Score: score}
	result.ChunkID, _ = payload["chunk_id"].(string)
	result.DocumentID, _ = payload["document_id"].(string)
	result.Text, _ = payload["text"].(string)
	result.PageNumber, _ = intField(payload, "page_number")
	result.CharStart, _ = intField(payload, "char_start")
	result.CharEnd, _ = intField(payload, "char_end")

	metadata := make(map[string]any)
	for k, v := range payload {
		if _, known := knownPayloadFields[k]; known {
			continue
		}
		metadata[k] = v
	}
	result.Metadata = metadata
	return result
}

func chunkFromPayload(payload map[string]any) domain.Chunk {
	chunk := domain.Chunk{}
	chunk.ChunkID, _ = payload["chunk_id"].(string)
	chunk.DocumentID, _ = payload["document_id"].(string)
	chunk.Text, _ = payload["text"].(string)
	chunk.PageNumber, _ = intField(payload, "page_number")
	chunk.ChunkIndex, _ = intField(payload, "chunk_index")
	chunk.CharStart, _ = intField(payload, "char_start")
	chunk.CharEnd, _ = intField(payload, "char_end")

	metadata := make(map[string]any)
	for k, v := range payload {
		if _, known := knownPayloadFields[k]; known {
			continue
		}
		if k == "chunk_index" {
			continue
		}
		metadata[k] = v
	}
	chunk.Metadata = metadata
	return chunk
}

// documentFilter builds the Qdrant payload filter restricting a request to
// the given documents. One ID uses an exact match, several use an any-of
// match; no IDs means no filter.
func documentFilter(documentIDs []string) map[string]any {
	if len(documentIDs) == 0 {
		return nil
	}
	var match map[string]any
	if len(documentIDs) == 1 {
		match = map[string]any{"value": documentIDs[0]}
	} else {
		match = map[string]any{"any": documentIDs}
	}
	return map[string]any{
		"must": []map[string]any{
			{"key": "document_id", "match": match},
		},
	}
}

func intField(payload map[string]any, key string) (int, bool) {
	return asInt(payload[key])
}

// asInt tolerates the numeric types JSON decoding produces.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}
