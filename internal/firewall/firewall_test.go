package firewall

import (
	"context"
	"strings"
	"testing"

	"ae3gis-labd/internal/labapi"
)

// scriptedRunner replays a fixed sequence of responses, one per call, and
// records every argv it was invoked with.
type scriptedRunner struct {
	calls     [][]string
	responses []fakeResult
	i         int
}

type fakeResult struct {
	stdout, stderr string
	err            error
}

func (r *scriptedRunner) Run(_ context.Context, argv []string) (string, string, error) {
	r.calls = append(r.calls, argv)
	if r.i >= len(r.responses) {
		return "", "", nil
	}
	res := r.responses[r.i]
	r.i++
	return res.stdout, res.stderr, res.err
}

func newController(run *scriptedRunner) *Controller {
	return &Controller{ContainerEngineBinary: "docker", run: run}
}

func TestDetectBinaryPrefersIptablesOverNft(t *testing.T) {
	run := &scriptedRunner{responses: []fakeResult{{stdout: "/usr/sbin/iptables\n"}}}
	c := newController(run)
	bin, err := c.detectBinary(context.Background(), "clab-lab1-r1")
	if err != nil {
		t.Fatalf("detectBinary: %v", err)
	}
	if bin != "iptables" {
		t.Fatalf("bin = %q", bin)
	}
}

func TestDetectBinaryFallsBackToNft(t *testing.T) {
	run := &scriptedRunner{responses: []fakeResult{{stdout: "/usr/sbin/iptables-nft\n"}}}
	c := newController(run)
	bin, err := c.detectBinary(context.Background(), "clab-lab1-r1")
	if err != nil {
		t.Fatalf("detectBinary: %v", err)
	}
	if bin != "iptables-nft" {
		t.Fatalf("bin = %q", bin)
	}
}

func TestDetectBinaryMissingIsEngineError(t *testing.T) {
	run := &scriptedRunner{responses: []fakeResult{{stderr: "command not found", err: errExit}}}
	c := newController(run)
	_, err := c.detectBinary(context.Background(), "clab-lab1-r1")
	var engErr *labapi.EngineError
	if !asEngineError(err, &engErr) {
		t.Fatalf("expected EngineError, got %v", err)
	}
}

func TestListReturnsEmptyOnAbsentChain(t *testing.T) {
	run := &scriptedRunner{responses: []fakeResult{
		{stdout: "/usr/sbin/iptables\n"},
		{stderr: "iptables: No chain/target/match by that name.", err: errExit},
	}}
	c := newController(run)
	rules, err := c.List(context.Background(), "clab-lab1-r1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if rules != nil {
		t.Fatalf("expected nil rules, got %+v", rules)
	}
}

func TestListOtherFailureIsEngineError(t *testing.T) {
	run := &scriptedRunner{responses: []fakeResult{
		{stdout: "/usr/sbin/iptables\n"},
		{stderr: "permission denied", err: errExit},
	}}
	c := newController(run)
	_, err := c.List(context.Background(), "clab-lab1-r1")
	var engErr *labapi.EngineError
	if !asEngineError(err, &engErr) {
		t.Fatalf("expected EngineError, got %v", err)
	}
}

func TestListParsesRulesWithDefaulting(t *testing.T) {
	stdout := strings.Join([]string{
		"-N AE3GIS-FW",
		"-A AE3GIS-FW -s 10.0.0.1 -d 10.0.0.2 -p tcp --dport 80 -j ACCEPT",
		"-A AE3GIS-FW -p icmp --dport 9 -j DROP",
		"-A AE3GIS-FW -p weird -j ACCEPT",
		"-A AE3GIS-FW -j WEIRDTARGET",
		"",
	}, "\n")
	run := &scriptedRunner{responses: []fakeResult{
		{stdout: "/usr/sbin/iptables\n"},
		{stdout: stdout},
	}}
	c := newController(run)
	rules, err := c.List(context.Background(), "clab-lab1-r1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rules) != 4 {
		t.Fatalf("expected 4 rules, got %d: %+v", len(rules), rules)
	}

	r0 := rules[0]
	if r0.Source != "10.0.0.1" || r0.Destination != "10.0.0.2" || r0.Protocol != ProtoTCP || r0.Port != "80" || r0.Action != ActionAccept {
		t.Fatalf("rule 0 = %+v", r0)
	}

	r1 := rules[1]
	if r1.Protocol != ProtoICMP || r1.Port != "-" || r1.Action != ActionDrop {
		t.Fatalf("icmp rule should force port to '-', got %+v", r1)
	}

	r2 := rules[2]
	if r2.Protocol != ProtoAny {
		t.Fatalf("unknown protocol should default to any, got %+v", r2)
	}

	r3 := rules[3]
	if r3.Action != ActionAccept {
		t.Fatalf("unknown action should default to accept, got %+v", r3)
	}
}

func TestApplyCreatesChainInstallsJumpFlushesAndAppends(t *testing.T) {
	run := &scriptedRunner{responses: []fakeResult{
		{stdout: "/usr/sbin/iptables\n"}, // detect
		{},                               // -N (ignored even if it "succeeds")
		{},                               // -C FORWARD -j AE3GIS-FW succeeds: jump already present
		{},                               // -F
		{},                               // -A rule 1
		{},                               // -A rule 2
		{stdout: "/usr/sbin/iptables\n"}, // detect (final list)
		{stdout: "-A AE3GIS-FW -s 10.0.0.1 -j ACCEPT\n-A AE3GIS-FW -j DROP\n"},
	}}
	c := newController(run)

	rules := []Rule{
		{Source: "10.0.0.1", Destination: "any", Protocol: ProtoAny, Port: "-", Action: ActionAccept},
		{Source: "any", Destination: "any", Protocol: ProtoAny, Port: "-", Action: ActionDrop},
	}
	result, err := c.Apply(context.Background(), "clab-lab1-r1", rules)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 rules back, got %+v", result)
	}

	var sawFlush, sawFirstAppend bool
	for _, argv := range run.calls {
		joined := strings.Join(argv, " ")
		if strings.Contains(joined, "-F AE3GIS-FW") {
			sawFlush = true
		}
		if strings.Contains(joined, "-A AE3GIS-FW -s 10.0.0.1") {
			sawFirstAppend = true
		}
	}
	if !sawFlush {
		t.Fatal("expected chain to be flushed before appends")
	}
	if !sawFirstAppend {
		t.Fatal("expected first rule to be appended with -s flag")
	}
}

func TestApplyInstallsForwardJumpWhenMissing(t *testing.T) {
	run := &scriptedRunner{responses: []fakeResult{
		{stdout: "/usr/sbin/iptables\n"},                     // detect
		{},                                                    // -N
		{stderr: "no match by that name", err: errExit},       // -C fails: jump absent
		{},                                                    // -I FORWARD 1 -j AE3GIS-FW
		{},                                                    // -F
		{stdout: "/usr/sbin/iptables\n"},                     // detect (final list)
		{},                                                    // -S (empty chain)
	}}
	c := newController(run)

	if _, err := c.Apply(context.Background(), "clab-lab1-r1", nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	var sawInsert bool
	for _, argv := range run.calls {
		if strings.Contains(strings.Join(argv, " "), "-I FORWARD 1 -j AE3GIS-FW") {
			sawInsert = true
		}
	}
	if !sawInsert {
		t.Fatal("expected FORWARD jump to be installed via -I when -C failed")
	}
}

func TestApplyOmitsDefaultFieldsFromAppend(t *testing.T) {
	run := &scriptedRunner{responses: []fakeResult{
		{stdout: "/usr/sbin/iptables\n"},
		{},
		{},
		{},
		{}, // single append
		{stdout: "/usr/sbin/iptables\n"},
		{},
	}}
	c := newController(run)

	rules := []Rule{{Source: "any", Destination: "any", Protocol: ProtoAny, Port: "-", Action: ActionAccept}}
	if _, err := c.Apply(context.Background(), "clab-lab1-r1", rules); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	appendCall := run.calls[4]
	joined := strings.Join(appendCall, " ")
	for _, flag := range []string{"-s", "-d", "-p", "--dport"} {
		if strings.Contains(joined, flag) {
			t.Fatalf("expected default field to be omitted, found %q in %q", flag, joined)
		}
	}
	if !strings.Contains(joined, "-j ACCEPT") {
		t.Fatalf("expected -j ACCEPT in append, got %q", joined)
	}
}

func TestApplyFlushFailureIsEngineError(t *testing.T) {
	run := &scriptedRunner{responses: []fakeResult{
		{stdout: "/usr/sbin/iptables\n"},
		{},
		{},
		{stderr: "permission denied", err: errExit},
	}}
	c := newController(run)
	_, err := c.Apply(context.Background(), "clab-lab1-r1", nil)
	var engErr *labapi.EngineError
	if !asEngineError(err, &engErr) {
		t.Fatalf("expected EngineError, got %v", err)
	}
}

type exitError struct{ msg string }

func (e *exitError) Error() string { return e.msg }

var errExit = &exitError{msg: "exit status 1"}

func asEngineError(err error, target **labapi.EngineError) bool {
	ee, ok := err.(*labapi.EngineError)
	if !ok {
		return false
	}
	*target = ee
	return true
}
