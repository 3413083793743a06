package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

// executeCommand is a helper to run a cobra command and capture its output
func executeCommand(args ...string) (string, string, error) {
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)

	return out.String(), errOut.String(), err
}

const boxes1XML = `<annotation>
	<folder>images</folder>
	<filename>boxes1.jpg</filename>
	<size>
		<width>64</width>
		<height>48</height>
		<depth>3</depth>
	</size>
	<segmented>0</segmented>
	<object>
		<name>pill</name>
		<pose>Unspecified</pose>
		<truncated>0</truncated>
		<difficult>0</difficult>
		<bndbox>
			<xmin>10</xmin>
			<ymin>12</ymin>
			<xmax>30</xmax>
			<ymax>40</ymax>
		</bndbox>
	</object>
</annotation>`

const strayXML = `<annotation>
	<filename>stray.jpg</filename>
	<size>
		<width>10</width>
		<height>10</height>
	</size>
</annotation>`

type project struct {
	dir, images, xml, config, workspace, database string
}

func (p project) flags(args ...string) []string {
	return append(args, "--config", p.config, "--workspace", p.workspace, "--database", p.database)
}

func setupProject(t *testing.T) project {
	t.Helper()
	dir := t.TempDir()
	p := project{
		dir:       dir,
		images:    filepath.Join(dir, "images"),
		xml:       filepath.Join(dir, "xml"),
		config:    filepath.Join(dir, "config.yaml"),
		workspace: filepath.Join(dir, "workspace.json"),
		database:  filepath.Join(dir, "annotations.db"),
	}
	for _, d := range []string{p.images, p.xml} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 48))); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"boxes0.jpg", "boxes1.jpg"} {
		if err := os.WriteFile(filepath.Join(p.images, name), buf.Bytes(), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	os.WriteFile(filepath.Join(p.xml, "boxes1.xml"), []byte(boxes1XML), 0o644)
	os.WriteFile(filepath.Join(p.xml, "stray.xml"), []byte(strayXML), 0o644)
	return p
}

func initProject(t *testing.T) project {
	t.Helper()
	p := setupProject(t)
	if _, errOut, err := executeCommand(p.flags("init", p.images)...); err != nil {
		t.Fatalf("init failed: %v, output: %s", err, errOut)
	}
	return p
}

func TestInitCmd(t *testing.T) {
	p := setupProject(t)

	out, errOut, err := executeCommand(p.flags("init", p.images)...)
	if err != nil {
		t.Fatalf("command execution failed: %v, output: %s", err, errOut)
	}

	for _, file := range []string{p.config, p.workspace, p.database} {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			t.Errorf("expected %s to be created, but it wasn't", file)
		}
	}
	if !strings.Contains(out, "2 images") {
		t.Errorf("expected output to report 2 images, got: %s", out)
	}
	if !strings.Contains(errOut, "Creating default config") {
		t.Errorf("expected log output to contain 'Creating default config', but got: %s", errOut)
	}

	t.Run("keeps an existing config", func(t *testing.T) {
		_, errOut, err := executeCommand(p.flags("init", p.images)...)
		if err != nil {
			t.Fatalf("command execution failed: %v, output: %s", err, errOut)
		}
		if !strings.Contains(errOut, "Config file already exists") {
			t.Errorf("expected log output to contain 'Config file already exists', but got: %s", errOut)
		}
	})

	t.Run("fails on a missing directory", func(t *testing.T) {
		_, _, err := executeCommand(p.flags("init", filepath.Join(p.dir, "nowhere"))...)
		if err == nil {
			t.Fatal("expected an error for a missing directory, but got none")
		}
		if !strings.Contains(err.Error(), "failed to load images") {
			t.Errorf("expected error to be about loading images, but got: %v", err)
		}
	})
}

func TestImportXMLCmd(t *testing.T) {
	p := initProject(t)

	out, errOut, err := executeCommand(p.flags("import", "xml", p.xml)...)
	if err != nil {
		t.Fatalf("command execution failed: %v, output: %s", err, errOut)
	}
	if !strings.Contains(out, "1 annotations updated") {
		t.Errorf("expected one updated annotation, got: %s", out)
	}
	if !strings.Contains(errOut, "stray") {
		t.Errorf("expected a warning about the stray file, got: %s", errOut)
	}

	out, _, err = executeCommand(p.flags("query")...)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if !strings.Contains(out, "boxes1") || !strings.Contains(out, "box_count") {
		t.Errorf("expected query to list boxes1, got: %s", out)
	}
}

func TestExportRecordCmd(t *testing.T) {
	p := initProject(t)
	if _, errOut, err := executeCommand(p.flags("import", "xml", p.xml)...); err != nil {
		t.Fatalf("import failed: %v, output: %s", err, errOut)
	}
	output := filepath.Join(p.dir, "train.tfrecord")

	t.Run("fails without reviewed boxes", func(t *testing.T) {
		_, _, err := executeCommand(p.flags("export", "record", output)...)
		if err == nil {
			t.Fatal("expected an error, but got none")
		}
		if !strings.Contains(err.Error(), "no exportable bounding boxes") {
			t.Errorf("unexpected error: %v", err)
		}
		if _, err := os.Stat(output); !os.IsNotExist(err) {
			t.Errorf("expected no output file after a failed export")
		}
	})

	t.Run("writes accepted boxes", func(t *testing.T) {
		t.Setenv("BOXLABELER_USER", "alice")
		if _, errOut, err := executeCommand(p.flags("accept", "boxes1")...); err != nil {
			t.Fatalf("accept failed: %v, output: %s", err, errOut)
		}

		out, errOut, err := executeCommand(p.flags("export", "record", output, "--skip-empty")...)
		if err != nil {
			t.Fatalf("command execution failed: %v, output: %s", err, errOut)
		}
		if !strings.Contains(out, "1 examples written") || !strings.Contains(out, "1 images skipped") {
			t.Errorf("unexpected output: %s", out)
		}

		out, _, err = executeCommand(p.flags("query", "boxes1")...)
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if !strings.Contains(out, `"alice"`) {
			t.Errorf("expected the reviewer from the environment, got: %s", out)
		}
	})
}

func TestReportCmd(t *testing.T) {
	p := initProject(t)
	executeCommand(p.flags("import", "xml", p.xml)...)

	out, _, err := executeCommand(p.flags("report")...)
	if err != nil {
		t.Fatalf("command execution failed: %v", err)
	}
	if !strings.Contains(out, "# Annotation report") || !strings.Contains(out, "**pill**: 1") {
		t.Errorf("unexpected report: %s", out)
	}

	out, _, err = executeCommand(p.flags("report", "--html")...)
	if err != nil {
		t.Fatalf("command execution failed: %v", err)
	}
	if !strings.Contains(out, "<h1>Annotation report</h1>") {
		t.Errorf("unexpected html report: %s", out)
	}
}

func TestExportImportJSONCmd(t *testing.T) {
	p := initProject(t)
	executeCommand(p.flags("import", "xml", p.xml)...)
	exported := filepath.Join(p.dir, "annotations.json")

	if _, errOut, err := executeCommand(p.flags("export", "json", exported)...); err != nil {
		t.Fatalf("export failed: %v, output: %s", err, errOut)
	}

	other := initProject(t)
	out, errOut, err := executeCommand(other.flags("import", "json", exported)...)
	if err != nil {
		t.Fatalf("import failed: %v, output: %s", err, errOut)
	}
	if !strings.Contains(out, "2 annotations updated, 0 discarded") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestConfigFlag(t *testing.T) {
	p := setupProject(t)
	p.config = filepath.Join(p.dir, "custom.yaml")

	t.Run("init creates the named config", func(t *testing.T) {
		if _, errOut, err := executeCommand(p.flags("init", p.images)...); err != nil {
			t.Fatalf("init failed: %v, output: %s", err, errOut)
		}
		if _, err := os.Stat(p.config); err != nil {
			t.Errorf("expected %s to be created: %v", p.config, err)
		}
		if _, err := os.Stat(filepath.Join(p.dir, "config.yaml")); !os.IsNotExist(err) {
			t.Errorf("expected no default config.yaml next to the custom one")
		}
	})

	t.Run("other commands need an existing file", func(t *testing.T) {
		_, _, err := executeCommand("report",
			"--config", filepath.Join(p.dir, "missing.yaml"),
			"--workspace", p.workspace,
			"--database", p.database,
		)
		if err == nil || !strings.Contains(err.Error(), "failed to load config") {
			t.Errorf("expected a config error, got: %v", err)
		}
	})
}
