package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/A-Elshahawy/enterprise-rag/internal/chunker"
	"github.com/A-Elshahawy/enterprise-rag/internal/config"
	"github.com/A-Elshahawy/enterprise-rag/internal/embedding/openai"
	"github.com/A-Elshahawy/enterprise-rag/internal/extractor"
	"github.com/A-Elshahawy/enterprise-rag/internal/generator"
	"github.com/A-Elshahawy/enterprise-rag/internal/processor"
	"github.com/A-Elshahawy/enterprise-rag/internal/retriever"
	"github.com/A-Elshahawy/enterprise-rag/internal/service"
	"github.com/A-Elshahawy/enterprise-rag/internal/tui"
	"github.com/A-Elshahawy/enterprise-rag/internal/vectorstore"
	"github.com/A-Elshahawy/enterprise-rag/internal/vectorstore/memory"
	"github.com/A-Elshahawy/enterprise-rag/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath   string
		listDocs  bool
		deleteID  string
		clearAll  bool
		showState bool
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional)")
	flag.BoolVar(&listDocs, "list", false, "List ingested documents and exit")
	flag.StringVar(&deleteID, "delete", "", "Delete the given document ID and exit")
	flag.BoolVar(&clearAll, "clear", false, "Clear the whole collection and exit")
	flag.BoolVar(&showState, "status", false, "Print pipeline status and exit")
	flag.Parse()
	inputs := flag.Args()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	svc, err := assemble(cfg, log)
	if err != nil {
		log.Fatal("assembly failed", zap.Error(err))
	}

	switch {
	case listDocs:
		docs, err := svc.ListDocuments(10000)
		if err != nil {
			log.Fatal("list documents failed", zap.Error(err))
		}
		for _, d := range docs {
			fmt.Printf("%s\t%s\t%d pages\t%d chunks\n", d.DocumentID, d.Filename, d.Pages, d.Chunks)
		}
		return
	case deleteID != "":
		if err := svc.DeleteDocument(deleteID); err != nil {
			log.Fatal("delete failed", zap.Error(err))
		}
		fmt.Printf("deleted document %s\n", deleteID)
		return
	case clearAll:
		if err := svc.ClearCollection(); err != nil {
			log.Fatal("clear failed", zap.Error(err))
		}
		fmt.Println("collection cleared")
		return
	case showState:
		st := svc.GetStatus()
		fmt.Printf("chunk_size=%d chunk_overlap=%d model=%s dimension=%d\n",
			st.ChunkSize, st.ChunkOverlap, st.EmbeddingModel, st.Dimension)
		if st.Collection.Err != "" {
			fmt.Printf("collection %s unavailable: %s\n", st.Collection.Name, st.Collection.Err)
		} else {
			fmt.Printf("collection %s: %d points, status %s\n",
				st.Collection.Name, st.Collection.PointsCount, st.Collection.Status)
		}
		return
	}

	for _, path := range inputs {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatal("read file failed", zap.String("path", path), zap.Error(err))
		}
		result, err := svc.Ingest(data, filepath.Base(path))
		if err != nil {
			log.Fatal("ingest failed", zap.String("path", path), zap.Error(err))
		}
		fmt.Printf("ingested %s: id=%s pages=%d chunks=%d\n",
			result.Filename, result.DocumentID, result.Pages, result.Chunks)
	}

	m := tui.New(svc)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal("tui failed", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func assemble(cfg *config.AppConfig, log *zap.Logger) (*service.RAGService, error) {
	embedder, err := openai.NewClient(openai.Config{
		BaseURL:   cfg.Embedder.BaseURL,
		APIKeyEnv: cfg.Embedder.APIKeyEnv,
		Model:     cfg.Embedder.Model,
		Dimension: cfg.Embedder.Dimension,
		BatchSize: cfg.Embedder.BatchSize,
		Timeout:   time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	var store vectorstore.Storage
	switch cfg.VectorStore.Type {
	case "memory", "":
		store = memory.NewStore()
	case "qdrant":
		qs, err := qdrant.NewStore(qdrant.Config{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKeyEnv:  cfg.VectorStore.Qdrant.APIKeyEnv,
			Collection: cfg.VectorStore.Qdrant.Collection,
			Timeout:    time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
			Logger:     log,
		})
		if err != nil {
			return nil, err
		}
		store = qs
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	ch, err := chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	proc := processor.New(extractor.New(log), ch, log)
	ret := retriever.New(embedder, store, log)

	var gen generator.Generator
	genClient, err := generator.NewClient(generator.Config{
		BaseURL:     cfg.Generator.BaseURL,
		APIKeyEnv:   cfg.Generator.APIKeyEnv,
		Model:       cfg.Generator.Model,
		MaxTokens:   cfg.Generator.MaxTokens,
		Temperature: cfg.Generator.Temperature,
		Timeout:     time.Duration(cfg.Generator.TimeoutSecs) * time.Second,
		Logger:      log,
	})
	if err != nil {
		log.Warn("generation disabled", zap.Error(err))
	} else {
		gen = genClient
	}

	return service.NewRAGService(proc, embedder, store, ret, gen, cfg.MaxFileSizeBytes(), log), nil
}
