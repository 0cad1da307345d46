package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/boostlocal/boost-api/pkg/logger"
)

type invitePurger interface {
	PurgeExpiredInvites(ctx context.Context, cutoff time.Time) (int64, error)
}

// InvitePurgeJobParams configures the expired invitation cleanup.
type InvitePurgeJobParams struct {
	Logger  *logger.Logger
	Invites invitePurger
	// Grace keeps expired invitations around for a while so admins can see
	// why a claim failed.
	Grace time.Duration
	Now   func() time.Time
}

// NewInvitePurgeJob builds the job deleting unclaimed invitations that
// expired more than Grace ago.
func NewInvitePurgeJob(params InvitePurgeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Invites == nil {
		return nil, fmt.Errorf("invite purger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	grace := params.Grace
	if grace < 0 {
		grace = 0
	}
	return &invitePurgeJob{logg: params.Logger, invites: params.Invites, grace: grace, now: now}, nil
}

type invitePurgeJob struct {
	logg    *logger.Logger
	invites invitePurger
	grace   time.Duration
	now     func() time.Time
}

func (j *invitePurgeJob) Name() string { return "invite-purge" }

func (j *invitePurgeJob) Run(ctx context.Context) (Tally, error) {
	cutoff := j.now().UTC().Add(-j.grace)
	purged, err := j.invites.PurgeExpiredInvites(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("purge invites: %w", err)
	}
	j.logg.Debug(j.logg.WithField(ctx, "cutoff", cutoff), "expired invitations purged")
	return Tally{"invites_purged": purged}, nil
}
