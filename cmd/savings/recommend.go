package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/the-savings-must-flow/internal/cli"
	"github.com/Veraticus/the-savings-must-flow/internal/common"
	"github.com/Veraticus/the-savings-must-flow/internal/engine"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
	"github.com/Veraticus/the-savings-must-flow/internal/recommendation"
	"github.com/Veraticus/the-savings-must-flow/internal/service"
	"github.com/Veraticus/the-savings-must-flow/internal/tui"
	"github.com/Veraticus/the-savings-must-flow/internal/tui/themes"
)

func recommendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recommend",
		Aliases: []string{"rec"},
		Short:   "Generate and manage savings recommendations",
	}

	cmd.AddCommand(recommendGenerateCmd())
	cmd.AddCommand(recommendListCmd())
	cmd.AddCommand(recommendShownCmd())
	cmd.AddCommand(recommendInteractionCmd("act", "Mark a recommendation as acted upon", recommendation.InteractionActionTaken))
	cmd.AddCommand(recommendInteractionCmd("save", "Save a recommendation for later", recommendation.InteractionSaveForLater))
	cmd.AddCommand(recommendDismissCmd())
	cmd.AddCommand(recommendFeedbackCmd())
	cmd.AddCommand(recommendReviewCmd())

	return cmd
}

// withEngine opens the engine for the duration of fn.
func withEngine(cmd *cobra.Command, fn func(eng *engine.Engine) error) error {
	eng, err := initEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()
	return fn(eng)
}

func recommendGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Turn active patterns into recommendations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}
			return withEngine(cmd, func(eng *engine.Engine) error {
				result := eng.Generate(cmd.Context(), userID)
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.GenerationSummary(result))
				if result.Status == service.StatusError {
					return common.NewUserError("Recommendation generation failed", errors.New(result.Message))
				}
				return nil
			})
		},
	}
}

func recommendListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List displayable recommendations, highest priority first",
		Long: `List the recommendations a user would see right now. Listing does not count
as showing them; use "savings recommend shown" or the review screen for that.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")

			userID, err := requireUser()
			if err != nil {
				return err
			}
			return withEngine(cmd, func(eng *engine.Engine) error {
				recs, err := eng.Recommendations(cmd.Context(), userID, limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), recs)
				}
				if len(recs) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No recommendations to show"))
					return nil
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle(fmt.Sprintf("Recommendations (%d)", len(recs))))
				return cli.WriteRecommendationTable(cmd.OutOrStdout(), recs)
			})
		},
	}

	cmd.Flags().IntP("limit", "n", 0, "Maximum recommendations (default: recommendations.default_limit)")
	cmd.Flags().Bool("json", false, "Print recommendations as JSON")

	return cmd
}

func recommendShownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shown <id>",
		Short: "Display a recommendation and record that it was shown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(eng *engine.Engine) error {
				ok, err := eng.MarkShown(cmd.Context(), args[0])
				if err != nil {
					return interactionError(args[0], err)
				}
				if !ok {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("Recommendation has expired"))
					return nil
				}
				rec, err := eng.Recommendation(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.RecommendationDetail(rec))
				return nil
			})
		},
	}
}

func recommendInteractionCmd(use, short string, kind recommendation.InteractionType) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return interact(cmd, args[0], kind, recommendation.InteractionDetails{})
		},
	}
}

func recommendDismissCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dismiss <id>",
		Short: "Dismiss a recommendation",
		Long: `Dismiss a recommendation. The reasons "not_relevant" and "not_interested"
also retire the underlying pattern so it is not recommended again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			return interact(cmd, args[0], recommendation.InteractionDismiss, recommendation.InteractionDetails{Reason: reason})
		},
	}

	cmd.Flags().String("reason", "", "Why the recommendation is dismissed (e.g. not_relevant, not_interested)")

	return cmd
}

func recommendFeedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback <id>",
		Short: "Leave feedback on a recommendation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var feedback model.Feedback
			if cmd.Flags().Changed("helpful") {
				helpful, _ := cmd.Flags().GetBool("helpful")
				feedback.IsHelpful = &helpful
			}
			if cmd.Flags().Changed("rating") {
				rating, _ := cmd.Flags().GetInt("rating")
				feedback.Rating = &rating
			}
			if cmd.Flags().Changed("comment") {
				comment, _ := cmd.Flags().GetString("comment")
				feedback.Comment = &comment
			}
			return interact(cmd, args[0], recommendation.InteractionFeedback, recommendation.InteractionDetails{Feedback: &feedback})
		},
	}

	cmd.Flags().Bool("helpful", false, "Whether the recommendation was helpful")
	cmd.Flags().Int("rating", 0, "Rating from 1 to 5")
	cmd.Flags().String("comment", "", "Free-form comment")

	return cmd
}

func interact(cmd *cobra.Command, id string, kind recommendation.InteractionType, details recommendation.InteractionDetails) error {
	return withEngine(cmd, func(eng *engine.Engine) error {
		ok, err := eng.Interact(cmd.Context(), id, kind, details)
		if err != nil {
			return interactionError(id, err)
		}
		if !ok {
			return common.NewUserError("Recommendation was not updated", common.ErrNotFound)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Recorded %s on %s", kind, id)))
		return nil
	})
}

// interactionError maps lifecycle errors to user-facing messages.
func interactionError(id string, err error) error {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return common.NewUserError(fmt.Sprintf("Recommendation %s not found", id), err)
	case errors.Is(err, recommendation.ErrInvalidTransition):
		return common.NewUserError("Recommendation can no longer change", err)
	case errors.Is(err, recommendation.ErrInvalidFeedback):
		return common.NewUserError("Invalid feedback", err)
	default:
		return err
	}
}

func recommendReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review recommendations interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			userID, err := requireUser()
			if err != nil {
				return err
			}
			return withEngine(cmd, func(eng *engine.Engine) error {
				summary, err := tui.Run(cmd.Context(), eng, tui.Config{
					UserID: userID,
					Limit:  limit,
					Theme:  themes.ByName(viper.GetString("tui.theme")),
				})
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
					"Session done: %d acted on, %d dismissed, %d saved, %d feedback",
					summary.Acted, summary.Dismissed, summary.Saved, summary.Feedback)))
				return nil
			})
		},
	}

	cmd.Flags().IntP("limit", "n", 0, "Maximum recommendations (default: recommendations.default_limit)")

	return cmd
}
