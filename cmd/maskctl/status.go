package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"garment-studio/internal/submit"
	"garment-studio/pkg/ui"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var statusWait bool

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show the state of a task, optionally waiting for it to finish",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var completeCmd = &cobra.Command{
	Use:   "complete <task-id>",
	Short: "Fetch the result URLs of a finished task",
	Args:  cobra.ExactArgs(1),
	RunE:  runComplete,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWait, "wait", "w", false, "poll until the task finishes, then fetch its results")
	statusCmd.Flags().BoolVarP(&submitCopy, "copy", "c", false, "copy the first result URL to the clipboard")
	completeCmd.Flags().BoolVarP(&submitCopy, "copy", "c", false, "copy the first result URL to the clipboard")
}

func runStatus(cmd *cobra.Command, args []string) error {
	taskID := args[0]
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := newClient()
	if !statusWait {
		st, err := client.Status(ctx, taskID)
		if err != nil {
			return err
		}
		line := ui.PhaseStyle(string(st.Status)).Render(string(st.Status))
		if st.Progress != nil {
			line += fmt.Sprintf(" %.0f%%", *st.Progress)
		}
		if st.Message != "" {
			line += " " + ui.FormatMuted(st.Message)
		}
		fmt.Printf("%s %s\n", taskID, line)
		return nil
	}

	orch := submit.New(client, nil, submit.OptionsFromConfig(cfg.Submit))
	res, err := orch.PollUntilTerminal(ctx, taskID)
	recordOutcome(ctx, taskID, res, err)
	if err != nil {
		return err
	}
	printOutputs(res.TaskID, res.Outputs)
	return nil
}

func runComplete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputs, err := newClient().Complete(ctx, args[0])
	if err != nil {
		return err
	}
	res := &submit.Result{TaskID: args[0], Outputs: outputs}
	recordOutcome(ctx, args[0], res, nil)
	printOutputs(res.TaskID, res.Outputs)
	return nil
}

// recordOutcome updates the local record for taskID when one exists.
func recordOutcome(ctx context.Context, taskID string, res *submit.Result, runErr error) {
	store, err := openStore()
	if err != nil {
		logrus.WithError(err).Debug("Task store unavailable")
		return
	}
	defer store.Close()

	rec, err := store.FindTask(ctx, taskID)
	if err != nil {
		return
	}
	switch {
	case runErr == nil && res != nil:
		rec.Phase = submit.PhaseSucceeded.String()
		rec.Outputs = res.Outputs
		rec.Error = ""
	case runErr != nil:
		rec.Phase = phaseFor(runErr).String()
		rec.Error = runErr.Error()
	}
	if err := store.Update(ctx, rec); err != nil {
		logrus.WithError(err).Debug("Failed to update task record")
	}
}

func phaseFor(err error) submit.Phase {
	if errors.Is(err, submit.ErrTimeout) {
		return submit.PhaseTimedOut
	}
	return submit.PhaseFailed
}
