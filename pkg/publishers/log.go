package publishers

import "context"

// logPublisher writes each event to the process log. It is the default sink
// when no publishers file is configured.
type logPublisher struct {
	id  string
	log Logger
}

func newLogPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	return NewLogPublisher(cfg.ID, log), nil
}

// NewLogPublisher builds a log-backed publisher directly, without a config entry.
func NewLogPublisher(id string, log Logger) Publisher {
	if id == "" {
		id = "log"
	}
	return &logPublisher{id: id, log: ensureLogger(log)}
}

func (l *logPublisher) ID() string   { return l.id }
func (l *logPublisher) Type() string { return TypeLog }

func (l *logPublisher) Publish(_ context.Context, evt Event) error {
	l.log.InfoObj("wallpaper delivered", "delivery", map[string]any{
		"target":  evt.TargetName,
		"source":  evt.SourceName,
		"post_id": evt.PostID,
		"file":    evt.FilePath,
		"size":    map[string]int{"width": evt.Width, "height": evt.Height},
	})
	return nil
}
