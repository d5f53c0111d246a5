package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
)

type askField struct {
	key      string
	label    string
	required bool
	list     bool
}

var askFields = map[ai.Operation][]askField{
	ai.OpResumeAnalysis: {
		{key: "resume", label: "Path to the resume text file", required: true},
		{key: "targetRole", label: "Target role"},
	},
	ai.OpContentGeneration: {
		{key: "topic", label: "Topic", required: true},
		{key: "level", label: "Level (beginner, intermediate, advanced)"},
	},
	ai.OpInterviewGeneration: {
		{key: "role", label: "Role", required: true},
		{key: "difficulty", label: "Difficulty (easy, medium, hard)"},
		{key: "count", label: "Number of questions"},
		{key: "focus", label: "Focus areas, comma separated", list: true},
	},
	ai.OpInterviewEvaluation: {
		{key: "role", label: "Role"},
		{key: "question", label: "Question", required: true},
		{key: "answer", label: "Your answer", required: true},
	},
	ai.OpAssessmentGeneration: {
		{key: "skill", label: "Skill", required: true},
		{key: "difficulty", label: "Difficulty (easy, medium, hard)"},
		{key: "count", label: "Number of questions"},
	},
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Run a single operation and print the result envelope as JSON",
	Run: func(cmd *cobra.Command, _ []string) {
		ask(cmd)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringP("operation", "o", "", "operation to run. Prompted for when unset.")
	askCmd.Flags().StringP("params", "p", "", "JSON file with operation parameters. Prompted for when unset.")
}

func ask(cmd *cobra.Command) {
	ctx := context.Background()

	_, logger, a, err := bootstrap(ctx)
	if err != nil {
		if logger == nil {
			log.Fatal(err)
		}
		logger.Fatal("starting the interview-coach", zap.Error(err))
	}
	defer a.Close()

	op, err := selectOperation(cmd)
	if err != nil {
		logger.Fatal("choosing an operation", zap.Error(err))
	}

	params, err := operationParams(cmd, op)
	if err != nil {
		logger.Fatal("collecting parameters", zap.Error(err))
	}

	env, err := a.Coach.Dispatch(ctx, op, params)
	if err != nil {
		logger.Fatal("operation rejected", zap.String("operation", string(op)), zap.Error(err))
	}

	pretty, _ := json.MarshalIndent(env, "", "  ")
	fmt.Println(string(pretty))

	if !env.Success {
		os.Exit(1)
	}
}

func selectOperation(cmd *cobra.Command) (ai.Operation, error) {
	if name, _ := cmd.Flags().GetString("operation"); name != "" {
		op := ai.Operation(name)
		if !op.Known() {
			return "", fmt.Errorf("unknown operation %q", name)
		}
		return op, nil
	}

	items := make([]string, 0, len(ai.Operations))
	for _, op := range ai.Operations {
		items = append(items, string(op))
	}

	operationPrompt := promptui.Select{
		Label: "Choose an operation and press ENTER",
		Items: items,
	}
	_, selected, err := operationPrompt.Run()
	if err != nil {
		return "", err
	}
	return ai.Operation(selected), nil
}

func operationParams(cmd *cobra.Command, op ai.Operation) (map[string]any, error) {
	if path, _ := cmd.Flags().GetString("params"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		params := map[string]any{}
		if err := json.Unmarshal(data, &params); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return params, nil
	}

	params := map[string]any{}
	for _, field := range askFields[op] {
		value, err := promptField(field)
		if err != nil {
			return nil, err
		}
		if value == "" {
			continue
		}

		switch {
		case field.key == "resume":
			// Resumes are too long for a single line prompt.
			data, err := os.ReadFile(value)
			if err != nil {
				return nil, err
			}
			params[field.key] = string(data)
		case field.list:
			params[field.key] = strings.Split(value, ",")
		default:
			params[field.key] = value
		}
	}
	return params, nil
}

func promptField(field askField) (string, error) {
	p := promptui.Prompt{Label: field.label}
	if field.required {
		p.Validate = func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("value is required")
			}
			return nil
		}
	}

	value, err := p.Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}
