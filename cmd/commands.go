package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"document-qa/internal/answer"
	"document-qa/internal/config"
	"document-qa/internal/db"
	"document-qa/internal/helper"
	"document-qa/internal/llmservice"
	"document-qa/internal/models"
	"document-qa/internal/parser"
	"document-qa/internal/pipeline"
	"document-qa/internal/rag"
	"document-qa/internal/retrieval"
)

var errChromemOnly = errors.New("export and import need vector_store.type: chromem")

func (a *app) indexCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Load, chunk, embed and store every document under the documents path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if path == "" {
				path = a.cfg.RAG.DocumentsPath
			}

			docs, err := parser.LoadAll(path, a.cfg.RAG.Includes, a.cfg.RAG.Excludes)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				log.Warn().Str("path", path).Msg("No documents to index")
				return nil
			}

			embedder, err := a.embedder()
			if err != nil {
				return err
			}
			store, closeStore, err := a.openStore(embedder)
			if err != nil {
				return err
			}
			defer closeStore()

			bar := progressbar.Default(int64(len(docs)), "indexing")
			p := pipeline.New(embedder, store, a.cfg.RAG.Config,
				pipeline.WithMetrics(a.metrics),
				pipeline.WithDimension(a.cfg.StoreDimension()),
				pipeline.WithProgress(func(models.Document, pipeline.Stats) { _ = bar.Add(1) }),
			)

			job, err := p.Start(ctx, docs)
			if err != nil {
				return err
			}
			log.Info().Str("job", job.ID).Int("documents", len(docs)).Msg("Indexing started")
			<-job.Done()
			_ = bar.Finish()

			helper.PrettyPrint(job.Status())
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "documents directory (defaults to rag.documents_path)")
	return cmd
}

func (a *app) uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Index a single document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			content, err := parser.LoadDocument(path)
			if err != nil {
				return fmt.Errorf("error parsing document: %w", err)
			}

			embedder, err := a.embedder()
			if err != nil {
				return err
			}
			store, closeStore, err := a.openStore(embedder)
			if err != nil {
				return err
			}
			defer closeStore()

			p := pipeline.New(embedder, store, a.cfg.RAG.Config,
				pipeline.WithMetrics(a.metrics),
				pipeline.WithDimension(a.cfg.StoreDimension()),
			)
			stats := p.Run(ctx, []models.Document{{ID: filepath.Base(path), Path: path, Content: content}})
			helper.PrettyPrint(stats)
			return nil
		},
	}
}

func (a *app) askCmd() *cobra.Command {
	var (
		topK      int
		threshold float64
		stream    bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			embedder, err := a.embedder()
			if err != nil {
				return err
			}
			store, closeStore, err := a.openStore(embedder)
			if err != nil {
				return err
			}
			defer closeStore()

			llm, err := llmservice.NewLLM(&a.cfg.ChatLLM)
			if err != nil {
				return err
			}
			synthesizer := answer.New(llm,
				answer.WithTemperature(a.cfg.Generation.Temperature),
				answer.WithMaxTokens(a.cfg.Generation.MaxTokens),
			)
			svc := rag.NewService(embedder, retrieval.New(store, retrieval.WithMetrics(a.metrics)), synthesizer)

			if !cmd.Flags().Changed("top-k") {
				topK = a.cfg.RAG.TopK
			}
			if !cmd.Flags().Changed("threshold") {
				threshold = a.cfg.RAG.SimilarityThreshold
			}
			req := models.ChatRequest{Query: args[0], TopK: topK, SimilarityThreshold: threshold}

			if stream {
				fragments, err := svc.AskStream(ctx, req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for fragment := range fragments {
					fmt.Fprint(out, fragment)
				}
				fmt.Fprintln(out)
				return nil
			}

			resp, err := svc.Ask(ctx, req)
			if err != nil {
				return err
			}
			helper.PrettyPrint(resp)
			return nil
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", models.DefaultTopK, "number of chunks to retrieve (1-20)")
	cmd.Flags().Float64Var(&threshold, "threshold", models.DefaultSimilarityThreshold, "minimum similarity (0-1)")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream the answer as it is generated")
	return cmd
}

func (a *app) initDBCmd() *cobra.Command {
	var drop bool
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the pgvector extension, documents table and match_documents function",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if a.cfg.VectorStore.Type != config.StoreSupabase {
				return fmt.Errorf("init-db needs vector_store.type: %s", config.StoreSupabase)
			}

			dbInstance, err := a.openDB()
			if err != nil {
				return err
			}
			defer dbInstance.Close()

			if drop {
				if err := db.DropDocuments(ctx, dbInstance); err != nil {
					return fmt.Errorf("error dropping documents: %w", err)
				}
			}
			return db.InitDB(ctx, dbInstance, a.cfg.Database.Dimension)
		},
	}
	cmd.Flags().BoolVar(&drop, "drop", false, "drop the documents table first")
	return cmd
}

func (a *app) clearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every document from the vector store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear the vector store without --yes")
			}
			store, closeStore, err := a.openStore(nil)
			if err != nil {
				return err
			}
			defer closeStore()
			return store.Clear(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the local collection to an encrypted file",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if a.cfg.VectorStore.Type != config.StoreChromem {
				return errChromemOnly
			}
			s, err := a.openChromem(nil)
			if err != nil {
				return err
			}
			if file == "" {
				file = s.ExportPath()
			}
			if err := s.Export(file); err != nil {
				return err
			}
			log.Info().Str("file", file).Int("documents", s.Count()).Msg("Exported collection")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "export file (defaults to <path>/<collection>.chromem)")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the local collection with an encrypted export",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if a.cfg.VectorStore.Type != config.StoreChromem {
				return errChromemOnly
			}
			if file != "" {
				if _, err := os.Stat(file); err != nil {
					return err
				}
			}
			s, err := a.openChromem(nil)
			if err != nil {
				return err
			}
			return s.Import(file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "export file (defaults to <path>/<collection>.chromem)")
	return cmd
}
