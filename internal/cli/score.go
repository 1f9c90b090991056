package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"github.com/spf13/cobra"
)

// NewScoreCmd scores a dense answer list against a quiz definition file without
// persisting anything.
func NewScoreCmd() *cobra.Command {
	var (
		quizPath string
		answers  []int
	)
	cmd := &cobra.Command{
		Use:     "score",
		Short:   "Score answers against a quiz definition file",
		Example: "  quiz-service score --quiz quiz.json --answers=1,-1,0",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(quizPath)
			if err != nil {
				return err
			}
			var quiz domain.Quiz
			if err := json.Unmarshal(data, &quiz); err != nil {
				return fmt.Errorf("decode %s: %w", quizPath, err)
			}
			if err := quiz.Validate(); err != nil {
				return err
			}

			score, total := app.Score(quiz, answers)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d\n", quiz.ID, score, total)
			return nil
		},
	}
	cmd.Flags().StringVar(&quizPath, "quiz", "", "path to a quiz definition in JSON")
	cmd.Flags().IntSliceVar(&answers, "answers", nil, "chosen option per question, -1 for unanswered")
	_ = cmd.MarkFlagRequired("quiz")
	return cmd
}
