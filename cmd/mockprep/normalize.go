package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/snarg/mockprep/internal/normalize"
)

func newNormalizeCmd() *cobra.Command {
	var (
		variant string
		schema  string
		count   int
	)

	cmd := &cobra.Command{
		Use:   "normalize [file]",
		Short: "Normalize a raw model reply into JSON",
		Long: `Reads a raw language-model reply from file, or stdin when no file is
given, and prints the normalized JSON. With --schema the result is also
validated against the question-set or evaluation schema.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = os.Stdin
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			raw, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			var out any
			switch schema {
			case "":
				v, err := normalize.ParseVariant(variant)
				if err != nil {
					return err
				}
				out, err = normalize.Normalize(string(raw), v)
				if err != nil {
					return fmt.Errorf("%s: %w", normalize.Kind(err), err)
				}
			case normalize.QuestionSetSchema:
				out, err = normalize.QuestionSet(string(raw), count)
				if err != nil {
					return fmt.Errorf("%s: %w", normalize.Kind(err), err)
				}
			case normalize.EvaluationSchema:
				out, err = normalize.ParseEvaluation(string(raw))
				if err != nil {
					return fmt.Errorf("%s: %w", normalize.Kind(err), err)
				}
			default:
				return fmt.Errorf("unknown schema %q: want %s or %s",
					schema, normalize.QuestionSetSchema, normalize.EvaluationSchema)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "array", "extraction variant: array or object")
	cmd.Flags().StringVar(&schema, "schema", "", "validate as question-set or evaluation")
	cmd.Flags().IntVar(&count, "count", 0, "required number of questions for question-set (0 = any)")

	return cmd
}
