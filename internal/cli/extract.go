package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cognify-labs/cognify/backend/internal/app"
	"github.com/cognify-labs/cognify/backend/internal/storage"
	"github.com/cognify-labs/cognify/backend/internal/util"
	"github.com/cognify-labs/cognify/backend/pkg/ai"
	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/graph"
	"github.com/cognify-labs/cognify/backend/pkg/leaselock"
	"github.com/cognify-labs/cognify/backend/pkg/loader"
	"github.com/cognify-labs/cognify/backend/pkg/loader/file"
	s3loader "github.com/cognify-labs/cognify/backend/pkg/loader/s3"
	"github.com/cognify-labs/cognify/backend/pkg/loader/web"
	"github.com/cognify-labs/cognify/backend/pkg/store"
	"github.com/cognify-labs/cognify/backend/pkg/store/sqlite"
	"github.com/cognify-labs/cognify/backend/pkg/stream"
)

var extractCmd = &cobra.Command{
	Use:   "extract [source]",
	Short: "Build a graph from a file, a web page, stdin or a topic",
	Long: `Build a knowledge graph and print its events as JSON lines.

The text is read from source: a local file, an http(s) URL (the main
article text of HTML pages is used), s3://bucket/key when AWS_* is
configured, or stdin when no source or "-" is given.
With --topic the model first writes a short text about the topic.

Examples:
  cognify extract notes.txt
  cognify extract https://en.wikipedia.org/wiki/Cell_(biology)
  cat notes.txt | cognify extract --name "Lecture 3"
  cognify extract --topic "Photosynthesis"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		topic := strings.TrimSpace(viper.GetString("topic"))

		aiClient, err := app.NewAIClient()
		if err != nil {
			return err
		}

		g := &common.Graph{
			UserID: viper.GetString("user"),
			Name:   viper.GetString("name"),
			Status: common.StatusPending,
		}
		var meta stream.InputMeta

		if topic != "" {
			if len(args) > 0 {
				return errors.New("give either a source or --topic, not both")
			}
			text, err := ai.GenerateTopicText(ctx, aiClient, topic)
			if err != nil {
				return fmt.Errorf("failed to generate text from topic: %w", err)
			}
			g.SourceType = common.SourceTopic
			g.InputText = text
			if g.Name == "" {
				g.Name = topic
			}
			meta.Topic = topic
		} else {
			ref := "-"
			if len(args) > 0 {
				ref = args[0]
			}
			sources, err := newSourceLoader(ctx, cmd.InOrStdin())
			if err != nil {
				return err
			}
			text, err := sources.LoadText(ctx, ref)
			if err != nil {
				return err
			}
			if util.CharCount(text) > graph.MaxInputChars {
				return fmt.Errorf("input text too large (max %d characters)", graph.MaxInputChars)
			}
			g.SourceType = common.SourceUpload
			g.InputText = text
			if g.Name == "" {
				g.Name = util.DefaultGraphName(time.Now())
			}
			meta.Length = util.CharCount(text)
			if ref != "-" {
				meta.Filename = ref
			}
		}

		if g.InputMeta, err = json.Marshal(meta); err != nil {
			return err
		}
		if g.ID, err = store.NewGraphID(); err != nil {
			return err
		}

		path, err := databasePath()
		if err != nil {
			return err
		}
		s, err := sqlite.Open(ctx, path)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.CreateGraph(ctx, g); err != nil {
			return err
		}

		orch, err := app.NewOrchestrator(app.Deps{
			Store:    s,
			Locker:   leaselock.NewLocal(),
			AIClient: aiClient,
			Owner:    "cli",
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "graph %s\n", g.ID)
		return orch.Stream(ctx, g.ID, newJSONLSink(cmd.OutOrStdout()))
	},
}

// newSourceLoader resolves the extract argument: a local path, "-" for
// stdin, an http(s) URL, or s3://bucket/key when object storage is set up.
func newSourceLoader(ctx context.Context, stdin io.Reader) (*loader.Mux, error) {
	m := loader.NewMux().
		Handle(file.NewFileLoader(stdin), "").
		Handle(web.NewWebLoader(nil), "http", "https")

	client, err := storage.NewS3Client(ctx)
	if err != nil {
		return nil, err
	}
	if client != nil {
		m.Handle(s3loader.NewS3Loader(client), "s3")
	}
	return m, nil
}

func init() {
	extractCmd.Flags().String("topic", "", "generate the input text from a topic")
	extractCmd.Flags().String("name", "", "graph name")
	extractCmd.Flags().String("user", "local", "owner recorded for the graph")

	_ = viper.BindPFlag("topic", extractCmd.Flags().Lookup("topic"))
	_ = viper.BindPFlag("name", extractCmd.Flags().Lookup("name"))
	_ = viper.BindPFlag("user", extractCmd.Flags().Lookup("user"))

	rootCmd.AddCommand(extractCmd)
}
