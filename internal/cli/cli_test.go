// internal/cli/cli_test.go
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-match/internal/app"
	"creator-match/internal/engine/cache"
	"creator-match/internal/models"
)

type stubYouTube struct{}

func (stubYouTube) Search(context.Context, string, int) ([]models.Candidate, error) {
	return []models.Candidate{{ID: "UC-seongsu", DisplayName: "성수카페투어", Followers: 64000}}, nil
}

func (stubYouTube) FetchRecentActivity(context.Context, string, int) ([]models.ActivityItem, error) {
	now := time.Now().UTC()
	return []models.ActivityItem{
		{ID: "v1", Title: "성수동 카페 추천 vlog", Tags: []string{"카페", "vlog"}, PublishedAt: now.Add(-24 * time.Hour), Views: 15000, Reactions: 900},
		{ID: "v2", Title: "성수 디저트 카페 투어", Tags: []string{"카페"}, PublishedAt: now.Add(-72 * time.Hour), Views: 22000, Reactions: 1300},
	}, nil
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const cafeProfile = `{"name":"성수 커피","primaryCategory":"카페","location":{"city":"서울","district":"성동구"},"priceTier":"premium"}`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath := writeFile(t, "config.yaml", "matching:\n  min_score: 1\n")
	cmd := NewRootCommand(app.WithProviders(stubYouTube{}, stubYouTube{}))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCommand_Table(t *testing.T) {
	out, err := execute(t, "run", "--profile", writeFile(t, "profile.json", cafeProfile))
	require.NoError(t, err)

	assert.Contains(t, out, "성수카페투어")
	assert.Contains(t, out, "Followers")
	assert.Contains(t, out, "1 matches")
}

func TestRunCommand_JSON(t *testing.T) {
	out, err := execute(t, "run", "--profile", writeFile(t, "profile.json", cafeProfile), "--json", "--max", "3")
	require.NoError(t, err)

	var rec models.AnalysisRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "카페", rec.Profile.PrimaryCategory)
	assert.LessOrEqual(t, len(rec.Matches), 3)
}

func TestRunCommand_InvalidProfile(t *testing.T) {
	_, err := execute(t, "run", "--profile", writeFile(t, "profile.json", `{"primaryCategory":"카페"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_PROFILE")
}

func TestRunCommand_RequiresProfile(t *testing.T) {
	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile")
}

func TestFingerprintCommand(t *testing.T) {
	out, err := execute(t, "fingerprint", "--profile", writeFile(t, "profile.json", cafeProfile))
	require.NoError(t, err)

	var p models.BusinessProfile
	require.NoError(t, json.Unmarshal([]byte(cafeProfile), &p))
	assert.Equal(t, cache.ProfileFingerprint(p)+"\n", out)
}

func TestProjectCommand(t *testing.T) {
	payload := `{"success":true,"data":{"basicInfo":{"name":"판교 국밥","address":"경기도 성남시 분당구 판교역로 10","priceRange":"8,000원~11,000원","category":"한식>국밥"}}}`
	hints := `{"ageBands":["30s","40s"]}`

	out, err := execute(t, "project", "--payload", writeFile(t, "payload.json", payload), "--hints", writeFile(t, "hints.json", hints))
	require.NoError(t, err)

	var p models.BusinessProfile
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, "판교 국밥", p.Name)
	assert.Equal(t, "한식", p.PrimaryCategory)
	assert.Equal(t, "분당구", p.Location.District)
	assert.Equal(t, []string{"30s", "40s"}, p.AgeBands)
}

func TestGCCommand(t *testing.T) {
	out, err := execute(t, "gc")
	require.NoError(t, err)
	assert.Equal(t, "deleted 0 expired records\n", out)
}
