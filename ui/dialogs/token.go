// Package dialogs provides application dialogs.
package dialogs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"garment-studio/internal/tenant"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"
)

// TokenStore is where the dialog saves the entered token.
type TokenStore interface {
	Token() (string, error)
	Save(token string) error
	Clear() error
}

// TokenDialog asks for the service access token.
type TokenDialog struct {
	store  TokenStore
	window fyne.Window

	entry  *widget.Entry
	status *widget.Label

	onSave func()
}

// NewTokenDialog creates a token dialog. onSave runs after a token was
// stored.
func NewTokenDialog(store TokenStore, window fyne.Window, onSave func()) *TokenDialog {
	return &TokenDialog{
		store:  store,
		window: window,
		onSave: onSave,
	}
}

// Show displays the dialog.
func (d *TokenDialog) Show() {
	content := d.createContent()

	dlg := dialog.NewCustomConfirm(
		"Service Login",
		"Save",
		"Cancel",
		content,
		func(save bool) {
			if !save {
				return
			}
			if err := d.Apply(d.entry.Text); err != nil {
				dialog.ShowError(err, d.window)
			}
		},
		d.window,
	)
	dlg.Resize(fyne.NewSize(480, 220))
	dlg.Show()
}

func (d *TokenDialog) createContent() fyne.CanvasObject {
	d.entry = widget.NewPasswordEntry()
	d.entry.SetPlaceHolder("Paste access token")
	d.status = widget.NewLabel(d.currentStatus())
	d.status.Wrapping = fyne.TextWrapWord

	logout := widget.NewButton("Log Out", func() {
		if err := d.store.Clear(); err != nil {
			logrus.WithError(err).Debug("Token clear failed")
		}
		d.status.SetText(d.currentStatus())
	})

	return container.NewVBox(
		d.status,
		widget.NewForm(widget.NewFormItem("Token", d.entry)),
		container.NewHBox(logout),
	)
}

// Apply validates and stores token.
func (d *TokenDialog) Apply(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}
	if err := d.store.Save(token); err != nil {
		return err
	}
	logrus.Info("Access token saved")
	if d.onSave != nil {
		d.onSave()
	}
	return nil
}

func (d *TokenDialog) currentStatus() string {
	return TokenStatus(d.store, time.Now())
}

// TokenStatus describes the stored token for display.
func TokenStatus(store TokenStore, now time.Time) string {
	token, err := store.Token()
	switch {
	case errors.Is(err, tenant.ErrTokenExpired):
		return "Your login has expired."
	case err != nil || token == "":
		return "Not logged in."
	}
	exp, ok := tenant.TokenExpiry(token)
	if !ok {
		return "Logged in."
	}
	return fmt.Sprintf("Logged in, expires in %s.", exp.Sub(now).Round(time.Minute))
}
