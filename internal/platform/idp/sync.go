package idp

import (
	"context"

	"github.com/rs/zerolog"
)

// Sync mirrors local profile changes and deletions to the identity provider.
//
// Local records are authoritative: a deleted doctor or patient file stays
// deleted even when its account cannot be removed remotely. Sync is the only
// caller that discards a failed Result, after logging it.
type Sync struct {
	client Client
	logger zerolog.Logger
}

func NewSync(client Client, logger zerolog.Logger) *Sync {
	return &Sync{client: client, logger: logger.With().Str("component", "idp_sync").Logger()}
}

func (s *Sync) Removed(ctx context.Context, id string) Status {
	return s.report("delete", id, s.client.DeleteUser(ctx, id))
}

func (s *Sync) Updated(ctx context.Context, p Profile) Status {
	return s.report("update", p.ID, s.client.UpdateUser(ctx, p))
}

func (s *Sync) report(action, id string, res Result) Status {
	switch res.Status {
	case StatusFailed:
		s.logger.Warn().Err(res.Err).Str("action", action).Str("user", id).
			Msg("identity provider call failed, keeping local change")
	case StatusNotFound:
		s.logger.Info().Str("action", action).Str("user", id).Msg("no identity provider account")
	default:
		s.logger.Debug().Str("action", action).Str("user", id).Stringer("status", res.Status).Msg("identity provider synced")
	}
	return res.Status
}
