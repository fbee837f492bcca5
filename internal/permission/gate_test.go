package permission

import (
	"context"
	"testing"
	"time"

	"github.com/openedu/ratings/internal/component"
	"github.com/openedu/ratings/internal/domain"
)

type stubChecker struct {
	granted map[string]bool
}

func (s stubChecker) HasCapability(ctx context.Context, actorID, contextID int64, capability string) bool {
	return s.granted[capability]
}

func allowAll() domain.Permissions {
	return domain.Permissions{View: true, ViewAny: true, ViewAll: true, Rate: true}
}

func settingsWith(site, plugin domain.Permissions) domain.Settings {
	return domain.Settings{Site: site, Plugin: plugin}
}

func TestEvaluateCombinesSiteAndPlugin(t *testing.T) {
	registry := component.NewRegistry(nil)
	registry.Register("forum", component.Callbacks{
		Permissions: func(ctx context.Context, contextID int64, comp, ratingArea string) domain.Permissions {
			return domain.Permissions{Rate: true, View: true}
		},
	})
	gate := NewGate(stubChecker{granted: map[string]bool{CapRate: true, CapViewAny: true}}, registry)

	site, plugin := gate.Evaluate(context.Background(), 1, 10, "forum", "post")
	if !site.Rate || !site.ViewAny || site.View {
		t.Fatalf("site = %+v, want rate+viewany only", site)
	}
	if !plugin.Rate || !plugin.View || plugin.ViewAny {
		t.Fatalf("plugin = %+v, want rate+view only", plugin)
	}

	effective := site.Intersect(plugin)
	if !effective.Rate {
		t.Fatalf("effective.Rate should hold when both sides grant it")
	}
	if effective.View || effective.ViewAny || effective.ViewAll {
		t.Fatalf("effective = %+v, only rate should survive the intersection", effective)
	}
}

func TestEvaluateUnregisteredComponentDeniesAll(t *testing.T) {
	gate := NewGate(stubChecker{granted: map[string]bool{CapRate: true, CapView: true}}, component.NewRegistry(nil))

	_, plugin := gate.Evaluate(context.Background(), 1, 10, "unknown", "post")
	if plugin != (domain.Permissions{}) {
		t.Fatalf("plugin = %+v, want all denied", plugin)
	}
}

func TestCanRateSelfRatingForbidden(t *testing.T) {
	settings := settingsWith(allowAll(), allowAll())
	if CanRate(settings, 42, time.Time{}, 42) {
		t.Fatalf("owner must not rate their own item")
	}
	if !CanRate(settings, 7, time.Time{}, 42) {
		t.Fatalf("non-owner with full permissions should rate")
	}
}

func TestCanRateNeedsBothPermissionSources(t *testing.T) {
	siteOnly := settingsWith(allowAll(), domain.Permissions{})
	if CanRate(siteOnly, 7, time.Time{}, 42) {
		t.Fatalf("plugin denial must block rating")
	}
	pluginOnly := settingsWith(domain.Permissions{}, allowAll())
	if CanRate(pluginOnly, 7, time.Time{}, 42) {
		t.Fatalf("site denial must block rating")
	}
}

func TestCanRateAssessmentWindow(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	finish := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	settings := settingsWith(allowAll(), allowAll())
	settings.AssessTimeStart = start
	settings.AssessTimeFinish = finish

	inside := start.Add(24 * time.Hour)
	if !CanRate(settings, 7, inside, 42) {
		t.Fatalf("item inside the window should be ratable")
	}
	if CanRate(settings, 7, start.Add(-time.Hour), 42) {
		t.Fatalf("item before the window must not be ratable")
	}
	if CanRate(settings, 7, finish.Add(time.Hour), 42) {
		t.Fatalf("item after the window must not be ratable")
	}

	// Window only applies when both bounds are set.
	settings.AssessTimeFinish = time.Time{}
	if !CanRate(settings, 7, start.Add(-time.Hour), 42) {
		t.Fatalf("half-open window must not restrict rating")
	}
}

func TestCanViewAggregate(t *testing.T) {
	tests := []struct {
		name    string
		view    bool
		viewany bool
		ownerID int64
		actorID int64
		want    bool
	}{
		{"owner with view", true, false, 42, 42, true},
		{"owner without view", false, true, 42, 42, false},
		{"non-owner with viewany", false, true, 7, 42, true},
		{"non-owner without viewany", true, false, 7, 42, false},
		{"ownerless item with viewany", false, true, 0, 42, true},
		{"ownerless item without viewany", true, false, 0, 42, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perms := domain.Permissions{View: tt.view, ViewAny: tt.viewany}
			settings := settingsWith(perms, perms)
			if got := CanViewAggregate(settings, tt.ownerID, tt.actorID); got != tt.want {
				t.Fatalf("CanViewAggregate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanViewAggregateNeedsBothPermissionSources(t *testing.T) {
	settings := settingsWith(domain.Permissions{ViewAny: true}, domain.Permissions{})
	if CanViewAggregate(settings, 7, 42) {
		t.Fatalf("plugin denial must block aggregate view")
	}
}
