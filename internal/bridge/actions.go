package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/freebox-bridge/internal/freebox"
)

// Action names accepted on the command topic.
const (
	ActionReboot         = "reboot"
	ActionSetWifi        = "set_wifi"
	ActionSetStatusLED   = "set_status_led"
	ActionHideWifiKey    = "hide_wifi_key"
	ActionSetLCDRotation = "set_lcd_rotation"
	ActionSetRepeaterLED = "set_repeater_led"
	ActionRebootRepeater = "reboot_repeater"
)

// ActionClient is the mutation surface of the router gateway.
type ActionClient interface {
	Reboot(ctx context.Context) error
	SetWifiEnabled(ctx context.Context, enabled bool) error
	SetStatusLED(ctx context.Context, on bool) error
	SetWifiKeyHidden(ctx context.Context, hidden bool) error
	SetLCDOrientation(ctx context.Context, degrees int) error
	SetRepeaterLED(ctx context.Context, id int, on bool) error
	RebootRepeater(ctx context.Context, id int) error
}

// Dispatcher executes commands against the router. Each command runs
// once under a deadline; a command that times out or fails is reported
// and never retried, because the router may have applied it anyway.
type Dispatcher struct {
	client  ActionClient
	timeout time.Duration
	logger  Logger
}

// NewDispatcher builds a dispatcher with the given per-command deadline.
func NewDispatcher(client ActionClient, timeout time.Duration, logger Logger) *Dispatcher {
	return &Dispatcher{client: client, timeout: timeout, logger: logger}
}

// Perform runs one command and reports the outcome. It never returns an
// error: every failure mode is encoded in the result so the caller can
// publish it verbatim.
func (d *Dispatcher) Perform(ctx context.Context, cmd CommandMessage) ResultMessage {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := d.execute(ctx, cmd)
	took := time.Since(start)

	if err == nil {
		d.logInfo("command applied", "action", cmd.Action, "command_id", cmd.ID, "duration", took)
		return NewResult(cmd, took)
	}

	status, code := classifyActionError(err)
	d.logWarn("command failed",
		"action", cmd.Action,
		"command_id", cmd.ID,
		"status", status,
		"error", err)
	return NewResultError(cmd, status, code, err.Error(), took)
}

func (d *Dispatcher) execute(ctx context.Context, cmd CommandMessage) error {
	switch cmd.Action {
	case ActionReboot:
		return d.client.Reboot(ctx)

	case ActionSetWifi:
		enabled, err := boolParam(cmd, "enabled")
		if err != nil {
			return err
		}
		return d.client.SetWifiEnabled(ctx, enabled)

	case ActionSetStatusLED:
		on, err := boolParam(cmd, "on")
		if err != nil {
			return err
		}
		return d.client.SetStatusLED(ctx, on)

	case ActionHideWifiKey:
		hidden, err := boolParam(cmd, "hidden")
		if err != nil {
			return err
		}
		return d.client.SetWifiKeyHidden(ctx, hidden)

	case ActionSetLCDRotation:
		degrees, err := intParam(cmd, "degrees")
		if err != nil {
			return err
		}
		return d.client.SetLCDOrientation(ctx, degrees)

	case ActionSetRepeaterLED:
		id, err := intParam(cmd, "repeater_id")
		if err != nil {
			return err
		}
		on, err := boolParam(cmd, "on")
		if err != nil {
			return err
		}
		return d.client.SetRepeaterLED(ctx, id, on)

	case ActionRebootRepeater:
		id, err := intParam(cmd, "repeater_id")
		if err != nil {
			return err
		}
		return d.client.RebootRepeater(ctx, id)

	default:
		return fmt.Errorf("%w: %q", errUnknownAction, cmd.Action)
	}
}

var (
	errUnknownAction = errors.New("unknown action")
	errBadParameter  = errors.New("bad parameter")
)

// classifyActionError maps an execution error onto the wire status and
// error code.
func classifyActionError(err error) (ResultStatus, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout, ErrCodeTimeout
	case errors.Is(err, freebox.ErrPermissionDenied):
		return StatusDenied, ErrCodeDenied
	case errors.Is(err, freebox.ErrUnsupportedEndpoint):
		return StatusUnsupported, ErrCodeUnsupported
	case errors.Is(err, errUnknownAction):
		return StatusFailed, ErrCodeUnknownAction
	case errors.Is(err, errBadParameter):
		return StatusFailed, ErrCodeBadParameter
	default:
		return StatusFailed, ErrCodeRouterError
	}
}

// boolParam reads a required boolean command parameter.
func boolParam(cmd CommandMessage, name string) (bool, error) {
	raw, ok := cmd.Parameters[name]
	if !ok {
		return false, fmt.Errorf("%w: missing %q", errBadParameter, name)
	}
	v, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q must be a boolean", errBadParameter, name)
	}
	return v, nil
}

// intParam reads a required integer command parameter. JSON numbers
// decode as float64, so whole floats are accepted.
func intParam(cmd CommandMessage, name string) (int, error) {
	raw, ok := cmd.Parameters[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q", errBadParameter, name)
	}
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%w: %q must be an integer", errBadParameter, name)
		}
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("%w: %q must be an integer", errBadParameter, name)
	}
}

func (d *Dispatcher) logInfo(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Info(msg, args...)
	}
}

func (d *Dispatcher) logWarn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
