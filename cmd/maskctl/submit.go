package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"garment-studio/internal/app"
	"garment-studio/internal/image"
	"garment-studio/internal/mask"
	"garment-studio/internal/submit"
	"garment-studio/internal/taskstore"
	"garment-studio/pkg/ui"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	submitImages []string
	submitNotes  []string
	submitPrompt string
	submitWait   bool
	submitCopy   bool
	submitPlain  bool
)

var submitCmd = &cobra.Command{
	Use:   "submit --image front.png[:mask.png] [--image ...]",
	Short: "Flatten images with their masks and submit an edit task",
	Long: `Each --image is added to a session in order; the first is the primary
image and up to three more are sent as references. An optional mask PNG after
a colon is drawn over the image as its overlay. --note sets per-image
instructions in the same order; --prompt sets the first image's note.`,
	Args: cobra.NoArgs,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringArrayVarP(&submitImages, "image", "i", nil, "image path with optional :mask.png (repeatable)")
	submitCmd.Flags().StringArrayVarP(&submitNotes, "note", "n", nil, "edit instruction for the image at the same position (repeatable)")
	submitCmd.Flags().StringVarP(&submitPrompt, "prompt", "p", "", "edit instruction for the first image")
	submitCmd.Flags().BoolVarP(&submitWait, "wait", "w", true, "poll until the task finishes")
	submitCmd.Flags().BoolVarP(&submitCopy, "copy", "c", false, "copy the first result URL to the clipboard")
	submitCmd.Flags().BoolVar(&submitPlain, "plain", false, "print progress lines instead of a spinner")
	_ = submitCmd.MarkFlagRequired("image")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	state := app.NewState(mask.NewEngine(nil), cfg.Session)
	for i, arg := range submitImages {
		if err := addImageArg(state, arg); err != nil {
			return err
		}
		note := ""
		if i < len(submitNotes) {
			note = submitNotes[i]
		}
		if i == 0 && submitPrompt != "" {
			note = submitPrompt
		}
		if err := state.UpdateAnnotation(note); err != nil {
			return err
		}
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	orch := submit.New(newClient(), store, submit.OptionsFromConfig(cfg.Submit))
	job, err := orch.Prepare(state.Sources())
	if err != nil {
		return err
	}
	if job.Skipped > 0 {
		fmt.Println(ui.FormatWarning(fmt.Sprintf("%d image(s) beyond the first %d were not sent", job.Skipped, submit.MaxImages)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if !submitWait {
		return submitOnly(ctx, store, job)
	}

	var res *submit.Result
	if submitPlain {
		orch.OnUpdate(func(u submit.Update) {
			fmt.Println(ui.PhaseStyle(u.Phase.String()).Render(u.Phase.String()), describe(u))
		})
		res, err = orch.Run(ctx, job)
	} else {
		res, err = runWithSpinner(ctx, orch, job)
	}
	if err != nil {
		return err
	}
	printOutputs(res.TaskID, res.Outputs)
	return nil
}

// addImageArg adds "image.png" or "image.png:mask.png" to state.
func addImageArg(state *app.State, arg string) error {
	imgPath, maskPath, hasMask := splitImageArg(arg)
	slot, err := state.AddImage(imgPath)
	if err != nil {
		return err
	}
	if !hasMask || maskPath == "" {
		return nil
	}
	layer, err := image.Load(maskPath)
	if err != nil {
		return fmt.Errorf("mask for %s: %w", imgPath, err)
	}
	floor := slot.History().Floor()
	overlay := image.Resize(layer.Image, floor.Width(), floor.Height(), nil)
	h := mask.NewHistory(floor)
	h.Commit(mask.Capture(overlay))
	logrus.WithFields(logrus.Fields{"image": imgPath, "mask": maskPath}).Debug("Mask attached")
	return state.UpdateMaskState(h)
}

func submitOnly(ctx context.Context, store taskstore.Store, job *submit.Job) error {
	resp, err := newClient().Submit(ctx, job.Request)
	if err != nil {
		return err
	}
	rec := &taskstore.Record{TaskID: resp.TaskID, Prompt: job.Request.Prompt, Images: job.Images, Phase: submit.PhasePolling.String()}
	if _, err := store.Create(ctx, rec); err != nil {
		logrus.WithError(err).Debug("Failed to record task")
	}
	fmt.Println(ui.FormatSuccess("Task submitted: " + resp.TaskID))
	fmt.Println(ui.FormatMuted("Follow it with: maskctl status --wait " + resp.TaskID))
	return nil
}

func printOutputs(taskID string, outputs []string) {
	fmt.Println(ui.FormatSuccess(fmt.Sprintf("Task %s finished with %d result(s)", taskID, len(outputs))))
	for _, u := range outputs {
		fmt.Println("  " + ui.FormatURL(u))
	}
	if submitCopy && len(outputs) > 0 {
		if err := clipboard.WriteAll(outputs[0]); err != nil {
			fmt.Println(ui.FormatWarning("Could not copy to clipboard: " + err.Error()))
		} else {
			fmt.Println(ui.FormatMuted("First URL copied to clipboard"))
		}
	}
}

func describe(u submit.Update) string {
	switch {
	case u.Err != nil:
		return u.Message
	case u.Attempt > 0:
		return fmt.Sprintf("task %s %s (check %d, %.0f%%)", u.TaskID, u.Status, u.Attempt, u.Progress)
	case u.TaskID != "":
		return "task " + u.TaskID
	default:
		return ""
	}
}

// --- Spinner TUI ---

type updateMsg submit.Update

type doneMsg struct {
	res *submit.Result
	err error
}

type submitModel struct {
	spinner spinner.Model
	last    submit.Update
	done    *doneMsg
	cancel  context.CancelFunc
}

func runWithSpinner(ctx context.Context, orch *submit.Orchestrator, job *submit.Job) (*submit.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = ui.StyleInfo
	p := tea.NewProgram(submitModel{spinner: s, cancel: cancel})

	orch.OnUpdate(func(u submit.Update) { p.Send(updateMsg(u)) })
	go func() {
		res, err := orch.Run(ctx, job)
		p.Send(doneMsg{res: res, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m := final.(submitModel)
	if m.done == nil {
		return nil, context.Canceled
	}
	return m.done.res, m.done.err
}

func (m submitModel) Init() tea.Cmd { return m.spinner.Tick }

func (m submitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.cancel()
		}
		return m, nil
	case updateMsg:
		m.last = submit.Update(msg)
		return m, nil
	case doneMsg:
		m.done = &msg
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m submitModel) View() string {
	if m.done != nil {
		return ""
	}
	phase := m.last.Phase.String()
	return fmt.Sprintf("\n %s %s %s\n\n%s\n",
		m.spinner.View(),
		ui.PhaseStyle(phase).Render(phase),
		describe(m.last),
		ui.FormatMuted(" [q] cancel"))
}

// splitImageArg splits "image.png:mask.png" at the first colon that follows
// a supported image extension, so drive letters like C:\ stay in the path.
func splitImageArg(arg string) (imgPath, maskPath string, ok bool) {
	for i := 0; i < len(arg); i++ {
		if arg[i] == ':' && image.IsSupportedFormat(arg[:i]) {
			return arg[:i], arg[i+1:], true
		}
	}
	return arg, "", false
}
