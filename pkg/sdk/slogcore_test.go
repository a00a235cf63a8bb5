package scopedex

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scopedex/internal/domain"
	domscope "github.com/kailas-cloud/scopedex/internal/domain/scope"
	logpkg "github.com/kailas-cloud/scopedex/internal/logger"
	scopeuc "github.com/kailas-cloud/scopedex/internal/usecase/scope"
)

func newBufferLogger(level slog.Level) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})), &buf
}

func TestZapToSlog_ForwardsEntries(t *testing.T) {
	sl, buf := newBufferLogger(slog.LevelInfo)
	zl := zapToSlog(sl).With(zap.String("subject", "7"))

	zl.Debug("hidden")
	zl.Warn("scope cache write failed", zap.Error(errors.New("redis down")))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug entry passed an info handler: %s", out)
	}
	for _, want := range []string{`"level":"WARN"`, `"msg":"scope cache write failed"`, `"subject":"7"`, `"error":"redis down"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s lacks %s", out, want)
		}
	}
}

func TestZapToSlog_NilIsNop(t *testing.T) {
	if zapToSlog(nil).Core().Enabled(zap.ErrorLevel) {
		t.Error("nil slog logger must yield a disabled zap logger")
	}
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (domscope.AccessScope, error) {
	return domscope.AccessScope{}, domain.ErrNotFound
}
func (failingCache) Put(context.Context, domscope.AccessScope) error { return nil }
func (failingCache) Delete(context.Context, string) error            { return nil }

type failingResolver struct{}

func (failingResolver) TenantsForSubject(context.Context, string) ([]int64, error) {
	return nil, errors.New("pg down")
}
func (failingResolver) BrandsForSubject(context.Context, string) ([]int64, error) { return nil, nil }
func (failingResolver) IsUnrestricted(context.Context, string) (bool, error)      { return false, nil }

func TestScopeWarningsReachSDKLogger(t *testing.T) {
	sl, buf := newBufferLogger(slog.LevelDebug)
	obs, err := newObserver(sl, nil)
	if err != nil {
		t.Fatal(err)
	}
	scopes := scopeuc.New(failingCache{}, failingResolver{}, time.Hour, obs.zap)

	if sc := scopes.Get(context.Background(), "7"); !sc.IsEmpty() {
		t.Fatalf("scope = %+v, want empty", sc)
	}
	if !strings.Contains(buf.String(), "access scope unresolvable") {
		t.Errorf("warning missing from SDK log: %s", buf.String())
	}
}

func TestObserver_BindCarriesLogger(t *testing.T) {
	sl, buf := newBufferLogger(slog.LevelInfo)
	obs, err := newObserver(sl, nil)
	if err != nil {
		t.Fatal(err)
	}
	logpkg.FromContext(obs.bind(context.Background())).Info("reindex finished")
	if !strings.Contains(buf.String(), "reindex finished") {
		t.Errorf("context logger did not reach slog: %s", buf.String())
	}

	var nilObs *observer
	if ctx := context.Background(); nilObs.bind(ctx) != ctx {
		t.Error("nil observer must leave the context untouched")
	}
}
