package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimprobe/internal/investigation"
	"github.com/ppiankov/claimprobe/internal/model"
	"github.com/ppiankov/claimprobe/internal/planner"
)

// resetViper isolates a test from the user's config file and from
// previous tests
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Setenv("HOME", t.TempDir())
	t.Cleanup(viper.Reset)
}

func TestConfigKeys(t *testing.T) {
	keys := configKeys("", reflect.TypeOf(model.Config{}))
	assert.Contains(t, keys, "llm.api_key")
	assert.Contains(t, keys, "search.engine_id")
	assert.Contains(t, keys, "http.timeout")
	assert.Contains(t, keys, "concurrency.workers")
	assert.NotContains(t, keys, "http")
}

func TestLoadConfig_EnvironmentAndDotEnv(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("LLM_API_KEY=sk-dotenv\nGOOGLE_CSE_ID=cse-123\nLLM_BASE_URL=https://llm.example.org/v1\n"), 0o644))

	// registered for restore, then removed so the .env values apply
	for _, name := range []string{"LLM_API_KEY", "GOOGLE_CSE_ID", "LLM_BASE_URL", "OPENAI_API_KEY"} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	t.Setenv("CLAIMPROBE_CONCURRENCY_WORKERS", "7")
	t.Setenv("CLAIMPROBE_HTTP_TIMEOUT", "5s")
	t.Setenv("CLAIMPROBE_LLM_MODEL", "llama-3.3-70b-instruct")

	prev := envFile
	envFile = dotenv
	defer func() { envFile = prev }()

	initConfig()
	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sk-dotenv", cfg.LLM.APIKey)
	assert.Equal(t, "https://llm.example.org/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "cse-123", cfg.Search.EngineID)
	assert.Equal(t, "llama-3.3-70b-instruct", cfg.LLM.Model)
	assert.Equal(t, 7, cfg.Concurrency.Workers)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, model.DefaultConfig().Extraction, cfg.Extraction)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".claimprobe", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var cfg model.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, model.DefaultConfig().Extraction, cfg.Extraction)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.NotContains(t, string(data), "api_key:")

	err = writeDefaultConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestPlanCommand(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "unis.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"Hochschulname,Hochschultyp,website\n"+
			"Uni A,Universität,https://uni-a.de\n"+
			"Uni B,Universität,https://www.uni-b.de/\n"+
			"FH C,Fachhochschule,https://fh-c.de\n"), 0o644))

	defsPath := filepath.Join(dir, "defs.yaml")
	require.NoError(t, os.WriteFile(defsPath, []byte(`investigations:
  - name: mensa
    input_file: `+csvPath+`
    output_file: results_mensa.jsonlines
    axes: [einrichtung, essen]
    variants:
      essen: [vegan, vegetarisch]
    query_template: "site:{website} Mensa {essen}"
    instruction_template: "Gibt es an {einrichtung} {essen}es Essen?"
`), 0o644))

	storeLine := `{"einrichtung":"Uni A","essen":"vegan","result":true,"reasoning":{"summary":"Evidence found","inputs":[]}}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "results_mensa.jsonlines"), []byte(storeLine+`{"einrichtung":"Uni B","es`), 0o644))

	t.Setenv("CLAIMPROBE_STORE_DIR", dir)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"plan", "mensa", "--json", "--env-file", "", "--definitions", defsPath})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		definitions, planJSON = "", false
	}()

	require.NoError(t, rootCmd.Execute())

	var summary planner.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, planner.Summary{Total: 4, Done: 1, Remaining: 3}, summary)
}

func TestListCommand(t *testing.T) {
	resetViper(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"list", "--env-file", ""})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	}()

	require.NoError(t, rootCmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Contains(t, out.String(), "open-lms")
	assert.Contains(t, out.String(), "einrichtung × software")
	assert.Contains(t, out.String(), "forschungsdatenrepo")
}

func TestBuildEvaluator_UnavailableProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := &model.Config{
		LLM:    model.LLMConfig{Provider: "ollama", Model: "llama3.1:8b", BaseURL: srv.URL},
		Search: model.SearchConfig{APIKey: "key", EngineID: "cx"},
	}
	def := &investigation.Definition{Name: "lms"}

	_, err := buildEvaluator(context.Background(), cfg, def, nil, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not available")
}

func TestCacheClearCommand(t *testing.T) {
	resetViper(t)
	dir := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "search"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "search", "abc.cache"), []byte("{}"), 0o644))
	t.Setenv("CLAIMPROBE_CACHE_DIR", dir)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"cache", "clear", "--env-file", ""})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	}()

	require.NoError(t, rootCmd.Execute())

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "cache directory removed")
	assert.Contains(t, out.String(), dir)
}
