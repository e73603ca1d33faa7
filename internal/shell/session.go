package shell

import (
	"github.com/bongobongo2020/nexrift/internal/config"
	"github.com/bongobongo2020/nexrift/internal/logging"
	"github.com/bongobongo2020/nexrift/internal/models"
	"github.com/bongobongo2020/nexrift/internal/shell/supervisor"
)

// maxSessionLines bounds the output kept per backend session.
const maxSessionLines = 5000

// Session log statuses.
const (
	SessionStopped = "stopped"
	SessionExited  = "exited"
	SessionCrashed = "crashed"
)

// sessionRecorder turns supervisor events into backend session logs.
type sessionRecorder struct {
	write    func(*config.BackendSession) (*models.BackendLogEntry, error)
	maxLines int
	log      *logging.Logger

	current *config.BackendSession
}

func newSessionRecorder(logger *logging.Logger) *sessionRecorder {
	return &sessionRecorder{
		write:    config.WriteBackendLog,
		maxLines: maxSessionLines,
		log:      logger,
	}
}

func (r *sessionRecorder) handle(ev supervisor.Event) {
	switch ev.Kind {
	case supervisor.EventState:
		if ev.To != supervisor.StateRunning {
			return
		}
		r.current = &config.BackendSession{
			Interpreter: ev.Interpreter,
			Script:      ev.Script,
			PID:         ev.PID,
			StartedAt:   ev.Time,
		}

	case supervisor.EventOutput:
		if r.current == nil || ev.PID != r.current.PID {
			return
		}
		r.current.Lines = append(r.current.Lines, "["+string(ev.Stream)+"] "+ev.Line)
		if over := len(r.current.Lines) - r.maxLines; over > 0 {
			r.current.Lines = append(r.current.Lines[:0], r.current.Lines[over:]...)
		}

	case supervisor.EventExit:
		if r.current == nil || ev.PID != r.current.PID {
			return
		}
		session := r.current
		r.current = nil

		session.EndedAt = ev.Time
		session.ExitCode = ev.Code
		session.Status = sessionStatus(ev)

		entry, err := r.write(session)
		if err != nil {
			r.log.Error().Err(err).Int("pid", session.PID).Msg("Failed to write backend log")
			return
		}
		r.log.Debug().Str("log_id", entry.LogID).Str("status", entry.Status).Msg("Backend log written")
	}
}

func sessionStatus(ev supervisor.Event) string {
	switch {
	case ev.Requested:
		return SessionStopped
	case ev.Code == 0:
		return SessionExited
	default:
		return SessionCrashed
	}
}
