// Package integration drives the full qipu command tree (internal/cli's
// NewRootCmd) against a real temp-directory store, the way the teacher's
// internal/integration package exercises its FUSE tree end to end instead
// of unit-testing individual handlers. It covers spec §8's six literal
// end-to-end scenarios.
package integration

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwaldstein/qipu/internal/cli"
	"github.com/mwaldstein/qipu/internal/note"
)

// run builds a fresh command tree rooted at storeDir and executes args,
// returning stdout+stderr and any error. A fresh NewRootCmd() per call
// mirrors one process invocation of the qipu binary.
func run(t *testing.T, storeDir string, args ...string) (string, error) {
	t.Helper()
	root := cli.NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"--root", storeDir}, args...))
	err := root.Execute()
	return buf.String(), err
}

// runWithStdin is like run but feeds in on the process's stdin, for
// commands (capture) that read from os.Stdin directly rather than
// cmd.InOrStdin().
func runWithStdin(t *testing.T, storeDir, in string, args ...string) (string, error) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := os.Stdin
	os.Stdin = r
	t.Cleanup(func() { os.Stdin = orig })
	go func() {
		w.WriteString(in)
		w.Close()
	}()
	return run(t, storeDir, args...)
}

func initStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if _, err := run(t, dir, "init", dir); err != nil {
		t.Fatalf("init: %v", err)
	}
	return dir
}

// Scenario 1: capture + retrieve.
func TestScenario_CaptureAndRetrieve(t *testing.T) {
	dir := initStore(t)

	out, err := runWithStdin(t, dir, "TIL ?\n", "capture",
		"--title", "Rust question mark", "--type", "fleeting", "--tag", "rust")
	if err != nil {
		t.Fatalf("capture: %v\n%s", err, out)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "notes"))
	if err != nil {
		t.Fatalf("read notes dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one note file, got %d: %v", len(entries), entries)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "notes", entries[0].Name()))
	if err != nil {
		t.Fatalf("read note file: %v", err)
	}
	body := string(raw)
	if !strings.Contains(body, "type: fleeting") {
		t.Fatalf("note missing type: fleeting frontmatter:\n%s", body)
	}
	if !strings.Contains(body, "rust") {
		t.Fatalf("note missing rust tag in frontmatter:\n%s", body)
	}

	listOut, err := run(t, dir, "list", "--tag", "rust", "--format", "json")
	if err != nil {
		t.Fatalf("list: %v\n%s", err, listOut)
	}
	var rows []map[string]any
	if err := json.Unmarshal([]byte(listOut), &rows); err != nil {
		t.Fatalf("unmarshal list output: %v\n%s", err, listOut)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one list row, got %d: %s", len(rows), listOut)
	}
	id, _ := rows[0]["id"].(string)
	if !note.IDPattern.MatchString(id) {
		t.Fatalf("list row id %q does not match qp-[a-f0-9]{4,}", id)
	}
	if !strings.Contains(body, id) {
		t.Fatalf("note file frontmatter missing its own id %q:\n%s", id, body)
	}
}

type treeJSON struct {
	Nodes []string `json:"nodes"`
	Edges []struct {
		From, To, Type string
		Depth          int
		Inverted       bool
	} `json:"edges"`
	SpanningTree []struct {
		Parent, Child string
		Depth         int
	} `json:"spanning_tree"`
}

func createABC(t *testing.T, dir string) (a, b, c string) {
	t.Helper()
	mustID := func(out string) string {
		var created map[string]any
		if err := json.Unmarshal([]byte(out), &created); err != nil {
			t.Fatalf("unmarshal create output: %v\n%s", err, out)
		}
		id, _ := created["id"].(string)
		if id == "" {
			t.Fatalf("create output missing id: %s", out)
		}
		return id
	}
	outA, err := run(t, dir, "create", "--title", "A", "--format", "json", "--body", "a")
	if err != nil {
		t.Fatalf("create A: %v\n%s", err, outA)
	}
	outB, err := run(t, dir, "create", "--title", "B", "--format", "json", "--body", "b")
	if err != nil {
		t.Fatalf("create B: %v\n%s", err, outB)
	}
	outC, err := run(t, dir, "create", "--title", "C", "--format", "json", "--body", "c")
	if err != nil {
		t.Fatalf("create C: %v\n%s", err, outC)
	}
	a, b, c = mustID(outA), mustID(outB), mustID(outC)

	if _, err := run(t, dir, "link", "add", a, b, "--type", "supports"); err != nil {
		t.Fatalf("link add A B: %v", err)
	}
	if _, err := run(t, dir, "link", "add", b, c, "--type", "supports"); err != nil {
		t.Fatalf("link add B C: %v", err)
	}
	return a, b, c
}

// Scenario 2: typed link and traversal.
func TestScenario_TypedLinkAndTraversal(t *testing.T) {
	dir := initStore(t)
	a, b, c := createABC(t, dir)

	out, err := run(t, dir, "link", "tree", a, "--direction", "out", "--max-hops", "2", "--format", "json")
	if err != nil {
		t.Fatalf("link tree: %v\n%s", err, out)
	}
	var tree treeJSON
	if err := json.Unmarshal([]byte(out), &tree); err != nil {
		t.Fatalf("unmarshal tree: %v\n%s", err, out)
	}

	wantNodes := map[string]bool{a: true, b: true, c: true}
	if len(tree.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %v", tree.Nodes)
	}
	for _, n := range tree.Nodes {
		if !wantNodes[n] {
			t.Fatalf("unexpected node %q in %v", n, tree.Nodes)
		}
	}

	foundAB, foundBC := false, false
	for _, e := range tree.Edges {
		if e.From == a && e.To == b && e.Type == "supports" {
			foundAB = true
		}
		if e.From == b && e.To == c && e.Type == "supports" {
			foundBC = true
		}
	}
	if !foundAB || !foundBC {
		t.Fatalf("expected edges (A,supports,B) and (B,supports,C) in %+v", tree.Edges)
	}

	foundABSpan, foundBCSpan := false, false
	for _, sp := range tree.SpanningTree {
		if sp.Parent == a && sp.Child == b && sp.Depth == 1 {
			foundABSpan = true
		}
		if sp.Parent == b && sp.Child == c && sp.Depth == 2 {
			foundBCSpan = true
		}
	}
	if !foundABSpan || !foundBCSpan {
		t.Fatalf("expected spanning_tree entries A->B depth 1 and B->C depth 2, got %+v", tree.SpanningTree)
	}
}

// Scenario 3: inverted view.
func TestScenario_InvertedView(t *testing.T) {
	dir := initStore(t)
	a, b, c := createABC(t, dir)

	out, err := run(t, dir, "link", "tree", c, "--direction", "in", "--format", "json")
	if err != nil {
		t.Fatalf("link tree (in): %v\n%s", err, out)
	}
	var tree treeJSON
	if err := json.Unmarshal([]byte(out), &tree); err != nil {
		t.Fatalf("unmarshal tree: %v\n%s", err, out)
	}

	wantNodes := map[string]bool{a: true, b: true, c: true}
	if len(tree.Nodes) != 3 {
		t.Fatalf("expected same 3-node set from C, got %v", tree.Nodes)
	}
	for _, n := range tree.Nodes {
		if !wantNodes[n] {
			t.Fatalf("unexpected node %q in %v", n, tree.Nodes)
		}
	}

	sawInverse := false
	for _, e := range tree.Edges {
		if e.Type == "supported-by" && e.Inverted {
			sawInverse = true
		}
		if e.Type == "supports" && !e.Inverted {
			t.Fatalf("direction=in traversal should never surface a raw forward edge, got %+v", e)
		}
	}
	if !sawInverse {
		t.Fatalf("expected at least one supported-by virtual edge, got %+v", tree.Edges)
	}
}

// Scenario 4: weighted traversal visits the higher-value neighbor first.
func TestScenario_WeightedTraversal(t *testing.T) {
	dir := initStore(t)

	outA, err := run(t, dir, "create", "--title", "A", "--format", "json", "--body", "a", "--value", "50")
	if err != nil {
		t.Fatalf("create A: %v\n%s", err, outA)
	}
	outB, err := run(t, dir, "create", "--title", "B", "--format", "json", "--body", "b", "--value", "10")
	if err != nil {
		t.Fatalf("create B: %v\n%s", err, outB)
	}
	outBPrime, err := run(t, dir, "create", "--title", "B'", "--format", "json", "--body", "bp", "--value", "90")
	if err != nil {
		t.Fatalf("create B': %v\n%s", err, outBPrime)
	}
	var created map[string]any
	idOf := func(out string) string {
		if err := json.Unmarshal([]byte(out), &created); err != nil {
			t.Fatalf("unmarshal create output: %v\n%s", err, out)
		}
		return created["id"].(string)
	}
	a, b, bPrime := idOf(outA), idOf(outB), idOf(outBPrime)

	if _, err := run(t, dir, "link", "add", a, b, "--type", "related"); err != nil {
		t.Fatalf("link add A B: %v", err)
	}
	if _, err := run(t, dir, "link", "add", a, bPrime, "--type", "related"); err != nil {
		t.Fatalf("link add A B': %v", err)
	}

	out, err := run(t, dir, "link", "tree", a, "--weighted", "--format", "json")
	if err != nil {
		t.Fatalf("link tree --weighted: %v\n%s", err, out)
	}
	var tree treeJSON
	if err := json.Unmarshal([]byte(out), &tree); err != nil {
		t.Fatalf("unmarshal tree: %v\n%s", err, out)
	}

	var posB, posBPrime = -1, -1
	for i, sp := range tree.SpanningTree {
		if sp.Child == b {
			posB = i
		}
		if sp.Child == bPrime {
			posBPrime = i
		}
	}
	if posB == -1 || posBPrime == -1 {
		t.Fatalf("expected spanning_tree entries for both B and B' in %+v", tree.SpanningTree)
	}
	if posBPrime >= posB {
		t.Fatalf("expected B' (higher value, lower cost) to be visited before B, got spanning_tree %+v", tree.SpanningTree)
	}
}

// Scenario 5: budget-exact context.
func TestScenario_BudgetExactContext(t *testing.T) {
	dir := initStore(t)

	// Three notes with long bodies so the combined records output well
	// exceeds the 1000-char budget (spec §8 scenario: "totaling 2,500
	// chars of output").
	body := strings.Repeat("x", 800)
	var ids []string
	for _, title := range []string{"One", "Two", "Three"} {
		out, err := run(t, dir, "create", "--title", title, "--format", "json", "--body", body)
		if err != nil {
			t.Fatalf("create %s: %v\n%s", title, err, out)
		}
		var created map[string]any
		if err := json.Unmarshal([]byte(out), &created); err != nil {
			t.Fatalf("unmarshal create output: %v\n%s", err, out)
		}
		ids = append(ids, created["id"].(string))
	}

	args := []string{"context", "--max-chars", "1000", "--format", "records"}
	for _, id := range ids {
		args = append(args, "--note", id)
	}
	out, err := run(t, dir, args...)
	if err != nil {
		t.Fatalf("context: %v\n%s", err, out)
	}
	if len(out) > 1000 {
		t.Fatalf("context output is %d chars, want <= 1000", len(out))
	}
	if !strings.Contains(out, "END truncated=true") {
		t.Fatalf("expected a truncated=true footer, got:\n%s", out)
	}
}

// Scenario 6: pack round-trip.
func TestScenario_PackRoundTrip(t *testing.T) {
	srcDir := initStore(t)
	dstDir := initStore(t)

	outA, err := run(t, srcDir, "create", "--title", "Rust note", "--format", "json",
		"--body", "rust body", "--tag", "rust")
	if err != nil {
		t.Fatalf("create: %v\n%s", err, outA)
	}
	var created map[string]any
	if err := json.Unmarshal([]byte(outA), &created); err != nil {
		t.Fatalf("unmarshal create output: %v\n%s", err, outA)
	}
	noteID := created["id"].(string)

	outB, err := run(t, srcDir, "create", "--title", "Other note", "--format", "json",
		"--body", "other body")
	if err != nil {
		t.Fatalf("create: %v\n%s", err, outB)
	}
	var createdB map[string]any
	if err := json.Unmarshal([]byte(outB), &createdB); err != nil {
		t.Fatalf("unmarshal create output: %v\n%s", err, outB)
	}
	otherID := createdB["id"].(string)

	if _, err := run(t, srcDir, "link", "add", noteID, otherID, "--type", "related"); err != nil {
		t.Fatalf("link add: %v", err)
	}

	packPath := filepath.Join(t.TempDir(), "p.pack")
	if out, err := run(t, srcDir, "dump", "--tag", "rust", "--max-hops", "1", "--output", packPath); err != nil {
		t.Fatalf("dump: %v\n%s", err, out)
	}

	if out, err := run(t, dstDir, "load", packPath); err != nil {
		t.Fatalf("load: %v\n%s", err, out)
	}

	listOut, err := run(t, dstDir, "list", "--format", "json")
	if err != nil {
		t.Fatalf("list: %v\n%s", err, listOut)
	}
	var rows []map[string]any
	if err := json.Unmarshal([]byte(listOut), &rows); err != nil {
		t.Fatalf("unmarshal list output: %v\n%s", err, listOut)
	}
	seen := map[string]bool{}
	for _, r := range rows {
		seen[r["id"].(string)] = true
	}
	if !seen[noteID] || !seen[otherID] {
		t.Fatalf("expected both dumped notes present after load, got %v", rows)
	}

	linkOut, err := run(t, dstDir, "link", "list", noteID, "--format", "json")
	if err != nil {
		t.Fatalf("link list: %v\n%s", err, linkOut)
	}
	if !strings.Contains(linkOut, otherID) {
		t.Fatalf("expected dumped edge to %s to survive the round-trip:\n%s", otherID, linkOut)
	}

	doctorOut, err := run(t, dstDir, "doctor", "--format", "json")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, doctorOut)
	}
	var report struct {
		Issues []map[string]any `json:"Issues"`
	}
	if err := json.Unmarshal([]byte(doctorOut), &report); err != nil {
		t.Fatalf("unmarshal doctor report: %v\n%s", err, doctorOut)
	}
	if len(report.Issues) != 0 {
		t.Fatalf("expected zero doctor issues after a clean round-trip, got %v", report.Issues)
	}
}
