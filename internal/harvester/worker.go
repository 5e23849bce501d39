package harvester

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fairyhunter13/promo-harvester/internal/adapter/observability"
	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// Sink is where minted codes go: the durable tier of the inventory.
type Sink interface {
	Append(ctx context.Context, game, code string) error
}

// Worker is one promo-generation loop. It owns one proxy binding, one HTTP
// session (inside its PromoClient), and one in-flight client token. Its
// only observable effect is Sink.Append; every fault is handled locally
// and the loop never returns an error other than ctx.Err().
type Worker struct {
	Game   domain.GameSpec
	Proxy  domain.ProxySpec
	Client domain.PromoClient
	Inv    Sink
	Log    *slog.Logger
	Sleep  SleepFunc
}

// Run cycles the state machine until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	if w.Sleep == nil {
		w.Sleep = CtxSleep
	}
	log := w.Log.With(slog.String("game", w.Game.Name), slog.String("proxy", w.Proxy.URL))
	for {
		if err := w.cycle(ctx, log); err != nil {
			// cycle only fails on cancellation
			return err
		}
		if err := w.Sleep(ctx, idleDelay()); err != nil {
			return err
		}
	}
}

// cycle runs LoggingIn -> Emulating -> Minting -> Persisting once. An
// exhausted Emulating phase abandons the cycle; the caller restarts it.
func (w *Worker) cycle(ctx context.Context, log *slog.Logger) error {
	token, err := w.login(ctx, log)
	if err != nil {
		return err
	}

	hasCode, err := w.emulate(ctx, log, token)
	if err != nil {
		return err
	}
	if !hasCode {
		log.Warn("register-event attempts exhausted, restarting cycle")
		observability.CycleAbandoned.WithLabelValues(w.Game.Name).Inc()
		return nil
	}

	code, err := w.mint(ctx, log, token)
	if err != nil {
		return err
	}
	observability.CodesMinted.WithLabelValues(w.Game.Name).Inc()

	// Persistence faults drop the code: forward progress beats
	// exactly-once here, the upstream stays authoritative.
	if err := w.Inv.Append(ctx, w.Game.Name, code); err != nil {
		log.Error("inventory append failed, code dropped", slog.Any("error", err))
		observability.PersistFailures.WithLabelValues(w.Game.Name).Inc()
		return nil
	}
	log.Info("code persisted", slog.String("code", code))
	return nil
}

// login retries without bound; a worker must not drop because the upstream
// refuses logins for a while.
func (w *Worker) login(ctx context.Context, log *slog.Logger) (string, error) {
	for {
		token, err := w.Client.LoginClient(ctx, w.Game.AppToken, NewClientID())
		if err == nil {
			log.Debug("client token obtained")
			return token, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Error("client login failed", slog.Any("error", err))
		if serr := w.Sleep(ctx, loginRetryDelay(w.Game.BaseDelay)); serr != nil {
			return "", serr
		}
	}
}

// emulate performs up to Attempts register-event round trips. The attempt
// counter advances per round trip; the TooManyRegister backoff itself does
// not consume an extra attempt.
func (w *Worker) emulate(ctx context.Context, log *slog.Logger, token string) (bool, error) {
	eventID := uuid.NewString()
	for attempt := 0; attempt < w.Game.Attempts; attempt++ {
		hasCode, err := w.Client.RegisterEvent(ctx, token, w.Game.PromoID, eventID)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			switch {
			case errors.Is(err, domain.ErrTooManyRegister):
				d := rateSignalDelay(w.Game.BaseDelay)
				log.Warn("rate signal from upstream", slog.Duration("delay", d))
				observability.RateSignals.WithLabelValues(w.Game.Name).Inc()
				if serr := w.Sleep(ctx, d); serr != nil {
					return false, serr
				}
			case errors.Is(err, domain.ErrHTMLResponse):
				// proxy hiccup; try again immediately
				log.Error("html response from proxy", slog.Any("error", err))
			default:
				log.Error("register-event failed", slog.Any("error", err))
				if serr := w.Sleep(ctx, registerRetryDelay()); serr != nil {
					return false, serr
				}
			}
			continue
		}
		if hasCode {
			log.Debug("event registered", slog.Int("attempt", attempt+1))
			return true, nil
		}
		if serr := w.Sleep(ctx, registerRetryDelay()); serr != nil {
			return false, serr
		}
	}
	return false, nil
}

// mint loops until the upstream hands over the code it owes. Once hasCode
// was observed this step never gives up.
func (w *Worker) mint(ctx context.Context, log *slog.Logger, token string) (string, error) {
	for {
		code, err := w.Client.CreateCode(ctx, token, w.Game.PromoID)
		if err == nil {
			return code, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Error("create-code failed", slog.Any("error", err))
		if serr := w.Sleep(ctx, mintRetryDelay()); serr != nil {
			return "", serr
		}
	}
}
