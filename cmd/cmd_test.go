package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/marcus/plugsync/internal/agentlock"
	"github.com/marcus/plugsync/internal/history"
	"github.com/marcus/plugsync/internal/output"
	"github.com/marcus/plugsync/internal/settings"
	"github.com/marcus/plugsync/internal/syncclient"
	"github.com/marcus/plugsync/internal/syncer"
)

// devServer serves a fixed change list until it is cleared.
type devServer struct {
	mu      sync.Mutex
	files   map[string]syncclient.FileContent
	order   []string
	cleared int
	srv     *httptest.Server
}

func newDevServer(t *testing.T) *devServer {
	t.Helper()
	d := &devServer{files: make(map[string]syncclient.FileContent)}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/check-updates", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		resp := syncclient.CheckUpdatesResponse{Files: []syncclient.ChangedFile{}}
		for _, p := range d.order {
			resp.Files = append(resp.Files, syncclient.ChangedFile{Path: p})
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/file", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		fc, ok := d.files[r.URL.Query().Get("name")]
		d.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(fc)
	})
	mux.HandleFunc("/api/clear-updates", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		d.order = nil
		d.cleared++
		d.mu.Unlock()
	})
	d.srv = httptest.NewServer(mux)
	t.Cleanup(d.srv.Close)
	return d
}

func (d *devServer) add(path, filename, content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.order = append(d.order, path)
	d.files[path] = syncclient.FileContent{Filename: filename, Content: content}
}

func (d *devServer) clears() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cleared
}

// newVault creates a vault with installed plugins and saved settings.
func newVault(t *testing.T, s settings.Settings, plugins ...string) string {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, ".obsidian", "plugins")
	for _, id := range plugins {
		pdir := filepath.Join(root, id)
		if err := os.MkdirAll(pdir, 0o755); err != nil {
			t.Fatal(err)
		}
		manifest := `{"id":"` + id + `","name":"` + strings.ToUpper(id[:1]) + id[1:] + `","version":"1.0.0"}`
		if err := os.WriteFile(filepath.Join(pdir, "manifest.json"), []byte(manifest), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := settings.Save(filepath.Join(root, dataDirName, settings.FileName), s); err != nil {
		t.Fatal(err)
	}
	return dir
}

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	prev := output.Stdout
	output.Stdout = &buf
	t.Cleanup(func() {
		output.Stdout = prev
		resetFlags(rootCmd)
	})

	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// resetFlags restores every flag to its default so tests do not leak state
// through the package-level command tree.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func TestSyncCommandWritesFilesAndRecordsHistory(t *testing.T) {
	dev := newDevServer(t)
	dev.add("src/main.ts", "main.js", "console.log('hi')")
	dev.add("styles.css", "styles.css", "body{}")

	vaultDir := newVault(t, settings.Settings{
		ServerURL:        dev.srv.URL,
		PollInterval:     2000,
		Enabled:          true,
		SelectedPluginID: "my-plugin",
	}, "my-plugin")

	out, err := execute(t, "sync", "--json", "--vault", vaultDir)
	if err != nil {
		t.Fatalf("sync: %v\n%s", err, out)
	}

	var res syncer.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode result: %v\n%s", err, out)
	}
	if res.Written != 2 || !res.Cleared {
		t.Fatalf("result = %+v", res)
	}

	got, err := os.ReadFile(filepath.Join(vaultDir, ".obsidian", "plugins", "my-plugin", "main.js"))
	if err != nil || string(got) != "console.log('hi')" {
		t.Fatalf("main.js = %q, %v", got, err)
	}
	if n := dev.clears(); n != 1 {
		t.Fatalf("clears = %d, want 1", n)
	}

	out, err = execute(t, "history", "--json", "--vault", vaultDir)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var entries []history.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(entries) != 2 || entries[0].Path != "src/main.ts" || entries[0].Status != history.StatusWritten {
		t.Fatalf("history = %+v", entries)
	}
}

func TestSyncCommandRefusesWhileAgentRuns(t *testing.T) {
	dev := newDevServer(t)
	vaultDir := newVault(t, settings.Settings{ServerURL: dev.srv.URL, PollInterval: 2000, Enabled: true}, "p")

	lock := agentlock.New(filepath.Join(vaultDir, ".obsidian", "plugins", dataDirName, agentlock.FileName))
	if err := lock.Acquire(0); err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	_, err := execute(t, "sync", "--vault", vaultDir)
	if !errors.Is(err, agentlock.ErrHeld) {
		t.Fatalf("err = %v, want ErrHeld", err)
	}
}

func TestConfigSetGet(t *testing.T) {
	vaultDir := newVault(t, settings.Defaults(), "calendar")

	if _, err := execute(t, "config", "set", "pollInterval", "5000", "--vault", vaultDir); err != nil {
		t.Fatalf("set: %v", err)
	}
	out, err := execute(t, "config", "get", "pollInterval", "--vault", vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "5000" {
		t.Fatalf("get = %q, want 5000", out)
	}

	_, err = execute(t, "config", "set", "pollInterval", "-1", "--vault", vaultDir)
	if !errors.Is(err, settings.ErrInvalidPollInterval) {
		t.Fatalf("err = %v, want ErrInvalidPollInterval", err)
	}
	out, _ = execute(t, "config", "get", "pollInterval", "--vault", vaultDir)
	if strings.TrimSpace(out) != "5000" {
		t.Fatalf("invalid set changed value to %q", out)
	}

	if _, err := execute(t, "config", "set", "selectedPluginId", "calendar", "--vault", vaultDir); err != nil {
		t.Fatalf("select plugin: %v", err)
	}
	if _, err := execute(t, "config", "set", "bogus", "x", "--vault", vaultDir); err == nil {
		t.Fatal("unknown key accepted")
	}
}

func TestConfigLineShowsEnvOverride(t *testing.T) {
	saved := settings.Defaults()
	t.Setenv("PLUGSYNC_POLL_INTERVAL", "750")
	eff := settings.WithEnv(saved)

	line := configLine(saved, eff, "pollInterval")
	if !strings.Contains(line, "2000") || !strings.Contains(line, "PLUGSYNC_POLL_INTERVAL=750") {
		t.Errorf("configLine = %q", line)
	}
	if line := configLine(saved, eff, "selectedPluginId"); line != `""` {
		t.Errorf("empty value = %q", line)
	}
}

func TestPluginsListSorted(t *testing.T) {
	vaultDir := newVault(t, settings.Defaults(), "zeta", "alpha", "mid")
	out, err := execute(t, "plugins", "list", "--json", "--vault", vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	var plugins []struct{ ID string }
	if err := json.Unmarshal([]byte(out), &plugins); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	var ids []string
	for _, p := range plugins {
		ids = append(ids, p.ID)
	}
	if strings.Join(ids, ",") != "alpha,mid,zeta" {
		t.Fatalf("order = %v", ids)
	}
}

func TestBuildStatus(t *testing.T) {
	dev := newDevServer(t)
	dev.add("a.ts", "a.js", "x")
	vaultDir := newVault(t, settings.Settings{
		ServerURL:        dev.srv.URL,
		PollInterval:     2000,
		Enabled:          true,
		SelectedPluginID: "p",
	}, "p")

	out, err := execute(t, "status", "--json", "--vault", vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	var r statusReport
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if !r.ServerReachable || r.PendingFiles != 1 || !r.PluginInstalled || r.Agent != "stopped" {
		t.Fatalf("status = %+v", r)
	}
	if dev.clears() != 0 {
		t.Fatal("status consumed the change list")
	}
}

func TestWatchSettingsAppliesEditsFromAnotherProcess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugin-sync", settings.FileName)
	store, err := settings.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	a := &app{store: store, logger: slog.Default()}

	seen := make(chan settings.Settings, 4)
	store.OnChange(func(old, next settings.Settings) { seen <- next })

	stop, err := watchSettings(context.Background(), a)
	if err != nil {
		t.Fatalf("watchSettings: %v", err)
	}
	defer stop()
	time.Sleep(100 * time.Millisecond)

	other, err := settings.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := other.Update(func(s *settings.Settings) { s.SelectedPluginID = "dataview" }); err != nil {
		t.Fatal(err)
	}

	select {
	case next := <-seen:
		if next.SelectedPluginID != "dataview" {
			t.Fatalf("reloaded = %+v", next)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("monitor store did not pick up the external edit")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelWarn},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"error", slog.LevelError},
	}
	for _, tc := range tests {
		got, err := parseLevel(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("parseLevel(%q) = %v, %v", tc.in, got, err)
		}
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Error("parseLevel(loud) succeeded")
	}
}

func TestResolveWorkspace(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PLUGSYNC_VAULT", dir)

	c := &cobra.Command{Use: "t"}
	c.Flags().String("vault", "", "")
	c.Flags().String("config-dir", ".obsidian", "")
	c.Flags().String("settings", "", "")

	ws, err := resolveWorkspace(c)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, ".obsidian", "plugins", "plugin-sync", "data.json")
	if ws.SettingsPath != want {
		t.Errorf("settings path = %q, want %q", ws.SettingsPath, want)
	}

	c.Flags().Set("config-dir", ".vaultcfg")
	c.Flags().Set("settings", filepath.Join(dir, "custom.json"))
	ws, _ = resolveWorkspace(c)
	if ws.PluginRoot != filepath.Join(dir, ".vaultcfg", "plugins") {
		t.Errorf("plugin root = %q", ws.PluginRoot)
	}
	if ws.SettingsPath != filepath.Join(dir, "custom.json") {
		t.Errorf("settings override ignored: %q", ws.SettingsPath)
	}
}
