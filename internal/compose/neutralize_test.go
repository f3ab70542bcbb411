package compose

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattbr/branchbox/internal/config"
)

const baseFixture = `# shared services
services:
  db:
    image: postgres:16
    ports:
      - "5432:5432"
    volumes:
      - pgdata:/var/lib/postgresql/data
  cache:
    image: redis:7
    ports:
      - "6379:6379"
volumes:
  pgdata:
`

func writeBase(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docker-compose.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readBack(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestNeutralizeDisablesTargetPortsOnly(t *testing.T) {
	path := writeBase(t, baseFixture)

	services := map[string]config.ServiceSpec{"db": {Port: 5432}}
	if err := NeutralizeBasePorts(path, services); err != nil {
		t.Fatalf("NeutralizeBasePorts() error = %v", err)
	}

	got := readBack(t, path)

	if !strings.Contains(got, "    # ports:") {
		t.Error("db ports: key was not disabled")
	}
	if !strings.Contains(got, `      # - "5432:5432"`) {
		t.Error("db port entry was not disabled")
	}

	// cache is not managed and must keep its ports active.
	if !strings.Contains(got, "\n    ports:\n      - \"6379:6379\"") {
		t.Error("cache ports block should be untouched")
	}

	// Everything outside the db ports block survives byte-for-byte.
	for _, line := range []string{"# shared services", "image: postgres:16", "- pgdata:/var/lib/postgresql/data", "volumes:\n  pgdata:"} {
		if !strings.Contains(got, line) {
			t.Errorf("expected %q to be preserved", line)
		}
	}
}

func TestNeutralizeBothServices(t *testing.T) {
	path := writeBase(t, baseFixture)

	services := map[string]config.ServiceSpec{
		"db":    {Port: 5432},
		"cache": {Port: 6379},
	}
	if err := NeutralizeBasePorts(path, services); err != nil {
		t.Fatalf("NeutralizeBasePorts() error = %v", err)
	}

	got := readBack(t, path)
	if strings.Count(got, "# ports:") != 2 {
		t.Errorf("want both ports: keys disabled, got:\n%s", got)
	}
	if strings.Contains(got, "\n    ports:") {
		t.Errorf("an active ports: key remains:\n%s", got)
	}
}

func TestNeutralizeIsIdempotent(t *testing.T) {
	path := writeBase(t, baseFixture)
	services := map[string]config.ServiceSpec{"db": {Port: 5432}}

	if err := NeutralizeBasePorts(path, services); err != nil {
		t.Fatal(err)
	}
	first := readBack(t, path)

	if err := NeutralizeBasePorts(path, services); err != nil {
		t.Fatal(err)
	}
	second := readBack(t, path)

	if first != second {
		t.Errorf("second pass changed the file:\n%s\n---\n%s", first, second)
	}
}

func TestNeutralizeBlankLinesDoNotTerminateBlock(t *testing.T) {
	base := `services:
  web:
    ports:
      - "80:80"

      - "8080:80"
    image: nginx
`
	path := writeBase(t, base)

	if err := NeutralizeBasePorts(path, map[string]config.ServiceSpec{"web": {Port: 80}}); err != nil {
		t.Fatal(err)
	}

	got := readBack(t, path)
	if !strings.Contains(got, `      # - "8080:80"`) {
		t.Errorf("entry after blank line was not disabled:\n%s", got)
	}
	if !strings.Contains(got, "\n    image: nginx") {
		t.Errorf("following property was touched:\n%s", got)
	}
}

func TestNeutralizeIgnoresNestedPortsKeys(t *testing.T) {
	base := `services:
  web:
    deploy:
      ports:
        - "9:9"
    ports:
      - "80:80"
`
	path := writeBase(t, base)

	if err := NeutralizeBasePorts(path, map[string]config.ServiceSpec{"web": {Port: 80}}); err != nil {
		t.Fatal(err)
	}

	got := readBack(t, path)
	if !strings.Contains(got, "      ports:\n        - \"9:9\"") {
		t.Errorf("nested ports key should not be disabled:\n%s", got)
	}
	if !strings.Contains(got, "    # ports:\n      # - \"80:80\"") {
		t.Errorf("service-level ports key should be disabled:\n%s", got)
	}
}

func TestNeutralizeNoChangeLeavesFileAlone(t *testing.T) {
	base := `services:
  worker:
    image: busybox
`
	path := writeBase(t, base)
	before, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := NeutralizeBasePorts(path, map[string]config.ServiceSpec{"worker": {}}); err != nil {
		t.Fatal(err)
	}

	if readBack(t, path) != base {
		t.Error("file without ports blocks was rewritten")
	}
	after, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("file without changes was written to")
	}
}
