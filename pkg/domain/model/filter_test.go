package model_test

import (
	"net/url"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/prreminder/frontend/pkg/domain/model"
)

func TestNotificationFilters_Apply(t *testing.T) {
	base := model.DefaultFilters().WithPage(4)
	days := 7
	sent := false

	merged := model.PRStatusMerged
	got := base.Apply(model.FilterUpdate{Status: &merged, DaysOld: &days, SlackSent: &sent})

	gt.Value(t, got.Page).Equal(1)
	gt.Value(t, got.Status).Equal(model.PRStatusMerged)
	gt.Value(t, got.DaysOldString()).Equal("7")
	gt.Value(t, model.BoolString(got.SlackSent)).Equal("false")
	gt.Value(t, got.SortBy).Equal(model.SortByReceivedAt)

	days = 1
	gt.Value(t, *got.DaysOld).Equal(7)

	cleared := got.Apply(model.FilterUpdate{ClearDaysOld: true, ClearSlackSent: true})
	gt.Value(t, cleared.DaysOld).Nil()
	gt.Value(t, cleared.SlackSent).Nil()
	gt.Value(t, cleared.Status).Equal(model.PRStatusMerged)
}

func TestNotificationFilters_Validate(t *testing.T) {
	gt.NoError(t, model.DefaultFilters().Validate())

	badPage := model.DefaultFilters().WithPage(0)
	gt.Error(t, badPage.Validate()).Is(model.ErrInvalidFilter)

	badLimit := model.DefaultFilters()
	badLimit.Limit = 1000
	gt.Error(t, badLimit.Validate()).Is(model.ErrInvalidFilter)

	badSort := model.DefaultFilters()
	badSort.SortOrder = "sideways"
	gt.Error(t, badSort.Validate()).Is(model.ErrInvalidFilter)
}

func TestCallbackParams(t *testing.T) {
	testCases := map[string]struct {
		query     string
		succeeded bool
		slack     bool
	}{
		"success with slack":    {query: "success=true&token=abc&slack_connected=true", succeeded: true, slack: true},
		"success without slack": {query: "success=true&token=abc&slack_connected=false", succeeded: true},
		"missing token":         {query: "success=true"},
		"blank token":           {query: "success=true&token=%20"},
		"failure":               {query: "success=false&error=access_denied"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			q, err := url.ParseQuery(tc.query)
			gt.NoError(t, err).Required()
			p := model.ParseCallbackParams(q)
			gt.Value(t, p.Succeeded()).Equal(tc.succeeded)
			gt.Value(t, p.SlackIsConnected()).Equal(tc.slack)
		})
	}
}
