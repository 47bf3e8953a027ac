package registry_test

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/consul/api"
	"github.com/jrife/fakeconsul/storage/registry"
	"github.com/jrife/fakeconsul/storage/snapshot"
	"github.com/jrife/fakeconsul/storage/snapshot/plugins"
	"github.com/jrife/fakeconsul/storage/snapshot/plugins/file"
	"github.com/jrife/fakeconsul/utils/lvstream"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func strPtr(s string) *string {
	return &s
}

func intPtr(i int) *int {
	return &i
}

func boolPtr(b bool) *bool {
	return &b
}

// tempRegistryBuilder returns a function that opens a registry
// on the same snapshot every time it is called, simulating a
// process restart
type tempRegistryBuilder func(t *testing.T) func() *registry.Registry

func builder(plugin snapshot.Plugin) tempRegistryBuilder {
	return func(t *testing.T) func() *registry.Registry {
		snapshots, err := plugin.NewStore(snapshot.PluginOptions{
			Dir:  t.TempDir(),
			File: registry.SnapshotFile,
			Name: registry.SnapshotName,
		})

		if err != nil {
			t.Fatalf("Could not build a %s snapshot store: %s", plugin.Name(), err.Error())
		}

		return func() *registry.Registry {
			reg, err := registry.New(registry.Config{Snapshots: snapshots, Logger: zaptest.NewLogger(t)})

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			return reg
		}
	}
}

func mustRegister(t *testing.T, reg *registry.Registry, registration *api.AgentServiceRegistration) {
	if err := reg.Register(registration); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}
}

func mustRegisterExternal(t *testing.T, reg *registry.Registry, registration *api.CatalogRegistration) {
	if err := reg.RegisterExternal(registration); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}
}

func TestRegistry(t *testing.T) {
	for _, plugin := range plugins.Plugins() {
		t.Run(fmt.Sprintf("Registry(%s)", plugin.Name()), func(t *testing.T) {
			testRegistry(builder(plugin), t)
		})
	}
}

func testRegistry(builder tempRegistryBuilder, t *testing.T) {
	t.Run("Register", func(t *testing.T) { testRegister(builder, t) })
	t.Run("RegisterExternal", func(t *testing.T) { testRegisterExternal(builder, t) })
	t.Run("Deregister", func(t *testing.T) { testDeregister(builder, t) })
	t.Run("Clear", func(t *testing.T) { testClear(builder, t) })
	t.Run("Restart", func(t *testing.T) { testRestart(builder, t) })
}

func testRegister(builder tempRegistryBuilder, t *testing.T) {
	testCases := map[string]struct {
		registration *api.AgentServiceRegistration
		result       registry.Service
	}{
		"full": {
			registration: &api.AgentServiceRegistration{
				ID:      "A#1",
				Name:    "foobar",
				Address: "localhost",
				Port:    3003,
				Tags:    []string{"foo", "bar"},
			},
			result: registry.Service{
				ServiceID:      strPtr("A#1"),
				ServiceName:    "foobar",
				ServiceAddress: strPtr("localhost"),
				ServicePort:    intPtr(3003),
				ServiceTags:    []string{"foo", "bar"},
			},
		},
		"name-only": {
			registration: &api.AgentServiceRegistration{Name: "foobar"},
			result:       registry.Service{ServiceName: "foobar"},
		},
		"empty-collections": {
			registration: &api.AgentServiceRegistration{Name: "foobar", Tags: []string{}, Meta: map[string]string{}},
			result:       registry.Service{ServiceName: "foobar", ServiceTags: []string{}, ServiceMeta: map[string]string{}},
		},
		"meta-and-tag-override": {
			registration: &api.AgentServiceRegistration{
				Name:              "foobar",
				Meta:              map[string]string{"version": "1"},
				EnableTagOverride: true,
			},
			result: registry.Service{
				ServiceName:              "foobar",
				ServiceMeta:              map[string]string{"version": "1"},
				ServiceEnableTagOverride: boolPtr(true),
			},
		},
		"ignored-fields": {
			registration: &api.AgentServiceRegistration{
				Name:      "foobar",
				Kind:      api.ServiceKindTypical,
				Namespace: "default",
				Check:     &api.AgentServiceCheck{TTL: "10s"},
			},
			result: registry.Service{ServiceName: "foobar"},
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			reg := builder(t)()
			mustRegister(t, reg, testCase.registration)

			if diff := cmp.Diff([]registry.Service{testCase.result}, reg.Get("foobar", registry.First)); diff != "" {
				t.Fatal(diff)
			}
		})
	}

	t.Run("replaces same name", func(t *testing.T) {
		reg := builder(t)()
		mustRegister(t, reg, &api.AgentServiceRegistration{Name: "x", Port: 1})
		mustRegister(t, reg, &api.AgentServiceRegistration{Name: "y", Port: 5})
		mustRegister(t, reg, &api.AgentServiceRegistration{Name: "x", Port: 2})

		if diff := cmp.Diff([]registry.Service{{ServiceName: "x", ServicePort: intPtr(2)}}, reg.Get("x", registry.All)); diff != "" {
			t.Fatal(diff)
		}

		expected := []registry.Service{
			{ServiceName: "y", ServicePort: intPtr(5)},
			{ServiceName: "x", ServicePort: intPtr(2)},
		}

		if diff := cmp.Diff(expected, reg.Services()); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("nil registration", func(t *testing.T) {
		reg := builder(t)()
		mustRegister(t, reg, nil)

		if diff := cmp.Diff([]registry.Service{{}}, reg.Services()); diff != "" {
			t.Fatal(diff)
		}
	})
}

func testRegisterExternal(builder tempRegistryBuilder, t *testing.T) {
	testCases := map[string]struct {
		registration *api.CatalogRegistration
		result       registry.Service
	}{
		"node-and-service": {
			registration: &api.CatalogRegistration{
				Node:    "n1",
				Address: "localhost",
				Service: &api.AgentService{Service: "svc", Port: 3003},
			},
			result: registry.Service{
				Node:        strPtr("n1"),
				Address:     strPtr("localhost"),
				ServiceName: "svc",
				ServicePort: intPtr(3003),
			},
		},
		"everything": {
			registration: &api.CatalogRegistration{
				ID:              "40e4a748-2192-161a-0510-9bf59fe950b5",
				Node:            "foobar",
				Address:         "192.168.10.10",
				Datacenter:      "dc1",
				TaggedAddresses: map[string]string{"lan": "192.168.10.10", "wan": "10.0.10.10"},
				NodeMeta:        map[string]string{"somekey": "somevalue"},
				Service: &api.AgentService{
					ID:      "redis1",
					Service: "svc",
					Tags:    []string{"primary", "v1"},
					Address: "127.0.0.1",
					Meta:    map[string]string{"redis_version": "4.0"},
					Port:    8000,
				},
				Check:          &api.AgentCheck{Node: "foobar", CheckID: "service:redis1"},
				SkipNodeUpdate: true,
			},
			result: registry.Service{
				ID:              strPtr("40e4a748-2192-161a-0510-9bf59fe950b5"),
				Node:            strPtr("foobar"),
				Address:         strPtr("192.168.10.10"),
				Datacenter:      strPtr("dc1"),
				TaggedAddresses: map[string]string{"lan": "192.168.10.10", "wan": "10.0.10.10"},
				NodeMeta:        map[string]string{"somekey": "somevalue"},
				ServiceID:       strPtr("redis1"),
				ServiceName:     "svc",
				ServiceAddress:  strPtr("127.0.0.1"),
				ServicePort:     intPtr(8000),
				ServiceTags:     []string{"primary", "v1"},
				ServiceMeta:     map[string]string{"redis_version": "4.0"},
			},
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			reg := builder(t)()
			mustRegisterExternal(t, reg, testCase.registration)

			if diff := cmp.Diff(testCase.result, reg.Service("svc")); diff != "" {
				t.Fatal(diff)
			}
		})
	}

	t.Run("replaces local registration", func(t *testing.T) {
		reg := builder(t)()
		mustRegister(t, reg, &api.AgentServiceRegistration{Name: "svc", Port: 1})
		mustRegisterExternal(t, reg, &api.CatalogRegistration{Node: "n1", Service: &api.AgentService{Service: "svc"}})

		if diff := cmp.Diff([]registry.Service{{Node: strPtr("n1"), ServiceName: "svc"}}, reg.Get("svc", registry.All)); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("deregister external", func(t *testing.T) {
		reg := builder(t)()
		mustRegisterExternal(t, reg, &api.CatalogRegistration{Node: "n1", Service: &api.AgentService{Service: "svc"}})

		if err := reg.DeregisterExternal("svc"); err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}

		if !reg.Service("svc").IsZero() {
			t.Fatalf("expected svc to be deregistered")
		}
	})
}

func testDeregister(builder tempRegistryBuilder, t *testing.T) {
	open := builder(t)
	reg := open()
	mustRegister(t, reg, &api.AgentServiceRegistration{ID: "A#1", Name: "foobar", Port: 3003})
	mustRegister(t, reg, &api.AgentServiceRegistration{Name: "other"})

	for i := 0; i < 2; i++ {
		if err := reg.Deregister("foobar"); err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}
	}

	if diff := cmp.Diff([]registry.Service{}, reg.Get("foobar", registry.All)); diff != "" {
		t.Fatal(diff)
	}

	if !reg.Service("foobar").IsZero() {
		t.Fatalf("expected foobar to be deregistered")
	}

	if diff := cmp.Diff([]registry.Service{{ServiceName: "other"}}, open().Services()); diff != "" {
		t.Fatal(diff)
	}
}

func testClear(builder tempRegistryBuilder, t *testing.T) {
	open := builder(t)
	reg := open()
	mustRegister(t, reg, &api.AgentServiceRegistration{Name: "foobar"})

	if err := reg.Clear(); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if len(reg.Services()) != 0 {
		t.Fatalf("expected registry to be empty, got %+v", reg.Services())
	}

	restarted := open()

	if len(restarted.Services()) != 0 {
		t.Fatalf("expected restarted registry to be empty, got %+v", restarted.Services())
	}

	if restarted.Restored() != snapshot.OutcomeMissing {
		t.Fatalf("expected outcome to be missing, got %s", restarted.Restored())
	}
}

func testRestart(builder tempRegistryBuilder, t *testing.T) {
	open := builder(t)
	reg := open()

	if reg.Restored() != snapshot.OutcomeMissing {
		t.Fatalf("expected outcome to be missing, got %s", reg.Restored())
	}

	mustRegister(t, reg, &api.AgentServiceRegistration{Name: "c", Tags: []string{}, Meta: map[string]string{}})
	mustRegisterExternal(t, reg, &api.CatalogRegistration{
		Node:     "n1",
		NodeMeta: map[string]string{"rack": "r1"},
		Service:  &api.AgentService{ID: "a-1", Service: "a", Port: 80, EnableTagOverride: true},
	})
	mustRegister(t, reg, &api.AgentServiceRegistration{Name: "b", Address: "10.0.0.1"})

	expected := reg.Services()
	restarted := open()

	if restarted.Restored() != snapshot.OutcomeRestored {
		t.Fatalf("expected outcome to be restored, got %s", restarted.Restored())
	}

	if diff := cmp.Diff(expected, restarted.Services()); diff != "" {
		t.Fatal(diff)
	}
}

func TestCatalogService(t *testing.T) {
	service := registry.Service{
		Node:                     strPtr("n1"),
		ServiceID:                strPtr("web-1"),
		ServiceName:              "web",
		ServicePort:              intPtr(80),
		ServiceTags:              []string{"v1"},
		ServiceEnableTagOverride: boolPtr(true),
	}

	expected := &api.CatalogService{
		Node:                     "n1",
		ServiceID:                "web-1",
		ServiceName:              "web",
		ServicePort:              80,
		ServiceTags:              []string{"v1"},
		ServiceEnableTagOverride: true,
	}

	if diff := cmp.Diff(expected, service.CatalogService()); diff != "" {
		t.Fatal(diff)
	}
}

func TestIsZero(t *testing.T) {
	if !(registry.Service{}).IsZero() {
		t.Fatalf("expected zero service to be zero")
	}

	if (registry.Service{ServiceTags: []string{}}).IsZero() {
		t.Fatalf("expected service with empty tags not to be zero")
	}
}

func TestIgnoredFieldsAreLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	reg, err := registry.New(registry.Config{
		Snapshots: file.New(filepath.Join(t.TempDir(), registry.SnapshotFile), registry.SnapshotName),
		Logger:    zap.New(core),
	})

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	mustRegister(t, reg, &api.AgentServiceRegistration{Name: "web", SocketPath: "/tmp/web.sock", Partition: "p1"})

	entries := logs.FilterMessage("ignored registration fields").All()

	if len(entries) != 1 {
		t.Fatalf("expected one ignored fields entry, got %+v", logs.All())
	}

	if diff := cmp.Diff([]interface{}{"SocketPath", "Partition"}, entries[0].ContextMap()["fields"]); diff != "" {
		t.Fatal(diff)
	}
}

func TestRegisterTooLarge(t *testing.T) {
	open := builder(plugins.Plugin(file.DriverName))(t)
	reg := open()
	mustRegister(t, reg, &api.AgentServiceRegistration{Name: "small"})

	blob := map[string]string{"blob": strings.Repeat("x", lvstream.MaxValueSize)}

	if err := reg.Register(&api.AgentServiceRegistration{Name: "big", Meta: blob}); !errors.Is(err, registry.ErrServiceTooLarge) {
		t.Fatalf("expected err to be ErrServiceTooLarge, got %#v", err)
	}

	external := &api.CatalogRegistration{Node: "node", Service: &api.AgentService{Service: "big", Meta: blob}}

	if err := reg.RegisterExternal(external); !errors.Is(err, snapshot.ErrRecordTooLarge) {
		t.Fatalf("expected err to be ErrRecordTooLarge, got %#v", err)
	}

	// later registrations are unaffected
	mustRegister(t, reg, &api.AgentServiceRegistration{Name: "other"})

	names := []string{}

	for _, service := range open().Services() {
		names = append(names, service.ServiceName)
	}

	if diff := cmp.Diff([]string{"small", "other"}, names); diff != "" {
		t.Fatal(diff)
	}
}

func TestRestore(t *testing.T) {
	full := func(t *testing.T) []byte {
		path := filepath.Join(t.TempDir(), registry.SnapshotFile)
		reg, err := registry.New(registry.Config{Snapshots: file.New(path, registry.SnapshotName)})

		if err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}

		mustRegister(t, reg, &api.AgentServiceRegistration{Name: "web", Port: 80})

		data, err := os.ReadFile(path)

		if err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}

		return data
	}(t)

	kvSnapshot, err := snapshot.NewReader(snapshot.KindKV, nil)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	kvBytes, err := io.ReadAll(kvSnapshot)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	testCases := map[string]struct {
		contents []byte
		outcome  snapshot.Outcome
		services int
		err      error
	}{
		"empty": {
			contents: []byte{},
			outcome:  snapshot.OutcomeEmpty,
		},
		"truncated": {
			contents: full[:len(full)-2],
			outcome:  snapshot.OutcomeTruncated,
		},
		"complete": {
			contents: full,
			outcome:  snapshot.OutcomeRestored,
			services: 1,
		},
		"wrong-kind": {
			contents: kvBytes,
			err:      snapshot.ErrCorrupt,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), registry.SnapshotFile)

			if err := os.WriteFile(path, testCase.contents, 0644); err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			reg, err := registry.New(registry.Config{Snapshots: file.New(path, registry.SnapshotName)})

			if testCase.err != nil {
				if !errors.Is(err, testCase.err) {
					t.Fatalf("expected err to be %#v, got %#v", testCase.err, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if reg.Restored() != testCase.outcome {
				t.Fatalf("expected outcome to be %s, got %s", testCase.outcome, reg.Restored())
			}

			if len(reg.Services()) != testCase.services {
				t.Fatalf("expected %d services, got %+v", testCase.services, reg.Services())
			}
		})
	}
}

func TestNewTemp(t *testing.T) {
	reg, err := registry.NewTemp()

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	defer reg.Clear()

	mustRegister(t, reg, &api.AgentServiceRegistration{Name: "web"})

	if reg.Service("web").IsZero() {
		t.Fatalf("expected web to be registered")
	}
}

func TestDefaultPath(t *testing.T) {
	if path := registry.DefaultPath(); path != filepath.Join(os.TempDir(), ".fake_consul_services.m") {
		t.Fatalf("unexpected default path %s", path)
	}
}
