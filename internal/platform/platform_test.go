package platform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/i18n"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type call struct {
	name string
	args []string
	dir  string
}

type fakeRunner struct {
	outputs  map[string][]byte
	errs     map[string]error
	startErr error
	ran      []call
	started  []call
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	f.ran = append(f.ran, call{name: name, args: args})
	key := strings.Join(args, " ")
	for prefix, err := range f.errs {
		if strings.Contains(key, prefix) {
			return f.outputs[prefix], err
		}
	}
	for prefix, out := range f.outputs {
		if strings.Contains(key, prefix) {
			return out, nil
		}
	}
	return nil, nil
}

func (f *fakeRunner) Start(name string, args []string, dir string) error {
	f.started = append(f.started, call{name: name, args: args, dir: dir})
	return f.startErr
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}
}

// ---------------------------------------------------------------------------
// Select
// ---------------------------------------------------------------------------

func TestSelect(t *testing.T) {
	tests := []struct {
		kind     string
		wantKind Kind
		bucket   apps.Bucket
		wantErr  bool
	}{
		{"desktop", KindDesktop, apps.BucketDesktop, false},
		{"android", KindMobile, apps.BucketAndroid, false},
		{"IOS", KindMobile, apps.BucketIOS, false},
		{"browser", KindBrowser, apps.BucketDesktop, false},
		{"toaster", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			c, err := Select(Options{Kind: tt.kind, Runner: &fakeRunner{}})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Select() error: %v", err)
			}
			if c.Kind() != tt.wantKind || c.Bucket() != tt.bucket {
				t.Errorf("got %s/%s, want %s/%s", c.Kind(), c.Bucket(), tt.wantKind, tt.bucket)
			}
		})
	}
}

func TestSelect_Auto(t *testing.T) {
	c, err := Select(Options{Kind: "auto"})
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	// The test suite only runs on desktop operating systems.
	if !IsDesktopRuntime(c) {
		t.Errorf("auto selected %s, want desktop", c.Kind())
	}
	if IsDesktopRuntime(nil) {
		t.Error("nil capability should not be a desktop runtime")
	}
}

// ---------------------------------------------------------------------------
// Desktop shell
// ---------------------------------------------------------------------------

func TestShortcutFiles(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	touch(t, filepath.Join(root, "Editor.lnk"))
	touch(t, filepath.Join(root, "Tools", "Terminal.desktop"))
	touch(t, filepath.Join(root, "Tools", "Uninstall Editor.lnk"))
	touch(t, filepath.Join(root, "readme.txt"))
	touch(t, filepath.Join(root, "Notes.app", "Contents", "Info.plist"))
	touch(t, filepath.Join(root, "Notes.app", "Contents", "Nested.lnk"))
	touch(t, filepath.Join(other, "Player.LNK"))

	shell := NewDesktopShell(Options{
		MenuDirs: []string{root, filepath.Join(root, "missing"), other},
		Exclude: func(p string) bool {
			return strings.Contains(strings.ToLower(filepath.Base(p)), "uninstall")
		},
		Runner: &fakeRunner{},
	})
	got, err := shell.ShortcutFiles(context.Background())
	if err != nil {
		t.Fatalf("ShortcutFiles() error: %v", err)
	}
	want := []string{
		filepath.Join(root, "Editor.lnk"),
		filepath.Join(root, "Notes.app"),
		filepath.Join(root, "Tools", "Terminal.desktop"),
		filepath.Join(other, "Player.LNK"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ShortcutFiles() = %v, want %v", got, want)
	}
}

func TestShortcutFiles_NoDirs(t *testing.T) {
	shell := NewDesktopShell(Options{MenuDirs: []string{filepath.Join(t.TempDir(), "nope")}})
	if _, err := shell.ShortcutFiles(context.Background()); err == nil {
		t.Error("expected error when no menu directory exists")
	}
}

func TestShortcutFiles_Cancelled(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a", "b.lnk"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	shell := NewDesktopShell(Options{MenuDirs: []string{root}})
	if _, err := shell.ShortcutFiles(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDesktopLaunch_Executable(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "bin", "editor")
	touch(t, exe)
	runner := &fakeRunner{}
	shell := NewDesktopShell(Options{Runner: runner})

	app := apps.InstalledApp{ID: "e", Name: "Editor", ExecutablePath: exe, LaunchArgs: `--new-window "C:\My Docs"`}
	if err := shell.Launch(context.Background(), app); err != nil {
		t.Fatalf("Launch() error: %v", err)
	}
	if len(runner.started) != 1 {
		t.Fatalf("started %d commands, want 1", len(runner.started))
	}
	got := runner.started[0]
	if got.name != exe || got.dir != filepath.Dir(exe) {
		t.Errorf("started %q in %q", got.name, got.dir)
	}
	if want := []string{"--new-window", `C:\My Docs`}; !reflect.DeepEqual(got.args, want) {
		t.Errorf("args = %q, want %q", got.args, want)
	}
}

func TestDesktopLaunch_FallsBackToURI(t *testing.T) {
	runner := &fakeRunner{}
	shell := NewDesktopShell(Options{Runner: runner})

	app := apps.InstalledApp{ID: "v", Name: "VS Code", ExecutablePath: "/nonexistent/code", LaunchURI: "vscode://"}
	if err := shell.Launch(context.Background(), app); err != nil {
		t.Fatalf("Launch() error: %v", err)
	}
	if len(runner.started) != 1 || runner.started[0].args[len(runner.started[0].args)-1] != "vscode://" {
		t.Errorf("started = %+v, want opener for vscode://", runner.started)
	}
}

func TestDesktopLaunch_NoTarget(t *testing.T) {
	shell := NewDesktopShell(Options{Runner: &fakeRunner{}, Catalog: i18n.New("en")})
	err := shell.Launch(context.Background(), apps.InstalledApp{ID: "x", Name: "Ghost"})

	var le *apps.LaunchError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want *apps.LaunchError", err)
	}
	if !strings.Contains(le.Message, "Ghost") {
		t.Errorf("message %q does not name the app", le.Message)
	}
}

func TestDesktopLaunch_StartFails(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "tool")
	touch(t, exe)
	boom := errors.New("exec format error")
	shell := NewDesktopShell(Options{Runner: &fakeRunner{startErr: boom}})

	err := shell.Launch(context.Background(), apps.InstalledApp{Name: "Tool", ExecutablePath: exe})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
}

// ---------------------------------------------------------------------------
// Mobile
// ---------------------------------------------------------------------------

func TestListPackages(t *testing.T) {
	runner := &fakeRunner{outputs: map[string][]byte{
		"pm list packages": []byte("package:com.tencent.mm\r\npackage:org.example.notes\n\ngarbage\n"),
	}}
	m := NewMobilePackageManager(apps.BucketAndroid, Options{Runner: runner, Serial: "emulator-5554", ADBPath: "/opt/adb"})

	got, err := m.ListPackages(context.Background())
	if err != nil {
		t.Fatalf("ListPackages() error: %v", err)
	}
	if want := []string{"com.tencent.mm", "org.example.notes"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ListPackages() = %v, want %v", got, want)
	}
	if runner.ran[0].name != "/opt/adb" || runner.ran[0].args[0] != "-s" || runner.ran[0].args[1] != "emulator-5554" {
		t.Errorf("ran %+v, want adb with serial", runner.ran[0])
	}
}

func TestListPackages_IOSUnsupported(t *testing.T) {
	m := NewMobilePackageManager(apps.BucketIOS, Options{Runner: &fakeRunner{}})
	if _, err := m.ListPackages(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestListPackages_ADBFailure(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{"pm list": errors.New("exit status 1")}}
	m := NewMobilePackageManager(apps.BucketAndroid, Options{Runner: runner})
	if _, err := m.ListPackages(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestMobileLaunch(t *testing.T) {
	tests := []struct {
		name     string
		runner   *fakeRunner
		app      apps.InstalledApp
		wantErr  bool
		wantLast string
	}{
		{
			name:     "monkey succeeds",
			runner:   &fakeRunner{outputs: map[string][]byte{"monkey": []byte("Events injected: 1")}},
			app:      apps.InstalledApp{Name: "Notes", PackageName: "org.example.notes"},
			wantLast: "monkey",
		},
		{
			name:     "no activity falls back to known scheme",
			runner:   &fakeRunner{outputs: map[string][]byte{"monkey": []byte("** No activities found to run")}},
			app:      apps.InstalledApp{Name: "WeChat", PackageName: "com.tencent.mm"},
			wantLast: "weixin://",
		},
		{
			name:    "no activity and no uri",
			runner:  &fakeRunner{errs: map[string]error{"monkey": errors.New("exit 252")}},
			app:     apps.InstalledApp{Name: "Notes", PackageName: "org.example.notes"},
			wantErr: true,
		},
		{
			name: "am start reports error",
			runner: &fakeRunner{
				errs:    map[string]error{"monkey": errors.New("exit 252")},
				outputs: map[string][]byte{"am start": []byte("Error: Activity not started")},
			},
			app:     apps.InstalledApp{Name: "QQ", PackageName: "com.tencent.mobileqq"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMobilePackageManager(apps.BucketAndroid, Options{Runner: tt.runner})
			err := m.Launch(context.Background(), tt.app)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Launch() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantLast != "" {
				last := tt.runner.ran[len(tt.runner.ran)-1]
				if !strings.Contains(strings.Join(last.args, " "), tt.wantLast) {
					t.Errorf("last command %v, want it to contain %q", last.args, tt.wantLast)
				}
			}
		})
	}
}

func TestMobileLaunch_IOS(t *testing.T) {
	m := NewMobilePackageManager(apps.BucketIOS, Options{Runner: &fakeRunner{}})
	err := m.Launch(context.Background(), apps.InstalledApp{Name: "WeChat", PackageName: "com.tencent.mm"})
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

// ---------------------------------------------------------------------------
// Browser fallback
// ---------------------------------------------------------------------------

func TestBrowserLaunch(t *testing.T) {
	tests := []struct {
		name    string
		app     apps.InstalledApp
		wantKey i18n.Key
		started bool
	}{
		{"uri", apps.InstalledApp{Name: "Edge", LaunchURI: "microsoft-edge:https://www.bing.com"}, "", true},
		{"file uri blocked", apps.InstalledApp{Name: "Tool", LaunchURI: "file:///C:/tool.exe"}, i18n.LaunchFileBlocked, false},
		{"executable only", apps.InstalledApp{Name: "Tool", ExecutablePath: "/usr/bin/tool"}, i18n.LaunchUnsupported, false},
		{"nothing", apps.InstalledApp{Name: "Ghost"}, i18n.LaunchNoTarget, false},
	}
	cat := i18n.New("en")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			b := NewBrowserFallback(Options{Runner: runner, Catalog: cat})
			err := b.Launch(context.Background(), tt.app)

			if tt.wantKey == "" {
				if err != nil {
					t.Fatalf("Launch() error: %v", err)
				}
			} else {
				var le *apps.LaunchError
				if !errors.As(err, &le) {
					t.Fatalf("err = %v, want *apps.LaunchError", err)
				}
				if want := cat.T(tt.wantKey, tt.app.Name); le.Message != want {
					t.Errorf("message = %q, want %q", le.Message, want)
				}
			}
			if (len(runner.started) > 0) != tt.started {
				t.Errorf("started = %v, want %v", runner.started, tt.started)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"  ", nil},
		{"-a -b", []string{"-a", "-b"}},
		{`--profile "Work Profile"`, []string{"--profile", "Work Profile"}},
		{`C:\tools\x.exe  --flag`, []string{`C:\tools\x.exe`, "--flag"}},
		{`""`, []string{""}},
	}
	for _, tt := range tests {
		if got := SplitArgs(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitArgs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
