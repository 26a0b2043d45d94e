package cli

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"portfolio-functions/internal/chatcontext"
	"portfolio-functions/internal/envfile"
)

const (
	defaultContextFile = ".env.chatbot-context"
	defaultContextVar  = "CHATBOT_CONTEXT"
)

func newContextCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Manage the chat system prompt",
	}
	cmd.AddCommand(
		newContextExtractCmd(),
		newContextUploadCmd(a),
		newContextShowCmd(a),
	)
	return cmd
}

func readQuoted(path, key string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	value, err := envfile.ExtractQuoted(string(data), key)
	if err != nil {
		return "", fmt.Errorf("%s in %s: %w", key, path, err)
	}
	return value, nil
}

func newContextExtractCmd() *cobra.Command {
	var file, key string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Print the quoted context value from a dotenv file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			value, err := readQuoted(file, key)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), value)
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", defaultContextFile, "dotenv file holding the context")
	cmd.Flags().StringVar(&key, "key", defaultContextVar, "variable to extract")
	return cmd
}

func newContextUploadCmd(a *app) *cobra.Command {
	var file, key string
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload the context to the blob store",
		Long:  "Upload the context from --file, or from CHATBOT_CONTEXT when no file is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			value := a.cfg.Context.Inline
			if file != "" {
				extracted, err := readQuoted(file, key)
				if err != nil {
					return err
				}
				value = extracted
			}
			if strings.TrimSpace(value) == "" {
				return fmt.Errorf("no context to upload: set %s or pass --file", defaultContextVar)
			}

			store, err := a.openBlobStore(cmd.Context())
			if err != nil {
				return err
			}
			etag, err := store.Set(cmd.Context(), a.cfg.Context.Key, value)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s characters to %q (etag %s)\n",
				humanize.Comma(int64(utf8.RuneCountInString(value))), a.cfg.Context.Key, etag)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "dotenv file to extract the context from")
	cmd.Flags().StringVar(&key, "key", defaultContextVar, "variable to extract from --file")
	return cmd
}

func newContextShowCmd(a *app) *cobra.Command {
	var printPrompt bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Resolve the prompt the chat function would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var store chatcontext.BlobStore
			if a.cfg.Context.Bucket != "" {
				s, err := a.openBlobStore(ctx)
				if err != nil {
					return err
				}
				store = s
			}
			loader, err := chatcontext.NewChain(store, a.cfg.Context.Inline,
				chatcontext.WithKey(a.cfg.Context.Key), chatcontext.WithTTL(a.cfg.Context.TTL))
			if err != nil {
				return err
			}

			resolved := loader.Resolve(ctx)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "source: %s\nlength: %s characters\n",
				resolved.Source, humanize.Comma(int64(utf8.RuneCountInString(resolved.Prompt))))
			if printPrompt {
				fmt.Fprintf(out, "\n%s\n", resolved.Prompt)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&printPrompt, "print", false, "also print the prompt text")
	return cmd
}
