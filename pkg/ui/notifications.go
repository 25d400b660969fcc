package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"favthanker/pkg/config"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("Fav Thanker").Show($toast)
	`, title, message)
	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

// Notifier prints run milestones and mirrors them as desktop notifications
// when the configuration allows it
type Notifier struct {
	sender NotificationSender
	cfg    config.NotificationConfig
	out    io.Writer
}

// NewNotifier creates a Notifier for the current platform
func NewNotifier(cfg config.NotificationConfig) *Notifier {
	var sender NotificationSender
	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	case "windows":
		sender = &WindowsNotificationSender{}
	}
	return NewNotifierWithSender(cfg, sender, os.Stdout)
}

// NewNotifierWithSender creates a Notifier with an explicit sender; sender may be nil
func NewNotifierWithSender(cfg config.NotificationConfig, sender NotificationSender, out io.Writer) *Notifier {
	return &Notifier{sender: sender, cfg: cfg, out: out}
}

func (n *Notifier) send(enabled bool, title, message string) {
	if !n.cfg.Enabled || !enabled || n.sender == nil {
		return
	}
	// best effort
	_ = n.sender.Send(title, message)
}

// Completed reports a finished run
func (n *Notifier) Completed(username string, processed int) {
	msg := fmt.Sprintf("%s: %d favorites thanked", username, processed)
	fmt.Fprintf(n.out, "\n%s: %s\n", Green("Run complete"), Green(msg))
	n.send(n.cfg.OnComplete, "Run complete", msg)
}

// Stopped reports a run ended by the operator
func (n *Notifier) Stopped(username string, processed, total int) {
	msg := fmt.Sprintf("%s: stopped at %d of %d", username, processed, total)
	fmt.Fprintf(n.out, "\n%s: %s\n", Yellow("Run stopped"), Yellow(msg))
	n.send(n.cfg.OnComplete, "Run stopped", msg)
}

// Failed reports a run that ended with an error
func (n *Notifier) Failed(username string, err error) {
	msg := fmt.Sprintf("%s: %v", username, err)
	fmt.Fprintf(n.out, "\n%s: %s\n", Red("Run failed"), Red(msg))
	n.send(n.cfg.OnError, "Run failed", msg)
}

// Cooldown reports that the site rate limit paused the run
func (n *Notifier) Cooldown(username string) {
	msg := fmt.Sprintf("%s: shout limit reached, cooling down", username)
	fmt.Fprintf(n.out, "\n%s: %s\n", Magenta("Cooldown"), Yellow(msg))
	n.send(n.cfg.OnCooldown, "Cooldown", msg)
}
