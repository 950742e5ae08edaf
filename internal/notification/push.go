package notification

import (
	"context"
	"fmt"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
	"github.com/tkarvo/sentinel-go/internal/errors"
)

// PushNotifier sends alerts through shoutrrr push URLs (ntfy, telegram,
// discord and the rest of the shoutrrr catalog).
type PushNotifier struct {
	router *router.ServiceRouter
}

// NewPushNotifier validates the URLs and builds the sender.
func NewPushNotifier(urls []string) (*PushNotifier, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one push URL is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("invalid push URL configuration: %w", err)
	}
	return &PushNotifier{router: sender}, nil
}

// Name identifies the channel in logs.
func (p *PushNotifier) Name() string { return "push" }

// Notify sends the alert title and group to every configured URL.
func (p *PushNotifier) Notify(_ context.Context, alert *entities.Alert) error {
	params := types.Params{"title": alert.Title}
	message := alert.Title
	if alert.GroupKey != nil && *alert.GroupKey != "" {
		message = fmt.Sprintf("%s (group %s)", alert.Title, *alert.GroupKey)
	}

	var errs []error
	for _, err := range p.router.Send(message, &params) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("push delivery failed: %w", errors.Join(errs...))
	}
	return nil
}
