package bridge

import "testing"

func TestGateRejectsWhileDisabled(t *testing.T) {
	var g inputGate

	gen, ok := g.trySend()
	if !ok {
		t.Fatal("first send should be accepted")
	}
	if _, ok := g.trySend(); ok {
		t.Fatal("second send should be rejected while disabled")
	}

	g.enable(gen)
	if !g.enabled() {
		t.Fatal("enable should re-open the gate")
	}
	if _, ok := g.trySend(); !ok {
		t.Fatal("send after enable should be accepted")
	}
}

func TestGateStaleGenerationCannotEnable(t *testing.T) {
	var g inputGate

	gen1, _ := g.trySend()
	g.enable(gen1)
	gen2, _ := g.trySend()

	g.enable(gen1) // stale
	if g.enabled() {
		t.Fatal("stale generation must not re-enable a later send")
	}

	g.enable(gen2)
	if !g.enabled() {
		t.Fatal("current generation should re-enable")
	}
}

func TestGateExpireNoticeAtMostOnce(t *testing.T) {
	var g inputGate

	gen, _ := g.trySend()
	if !g.expire(gen) {
		t.Fatal("first expire should request a notice")
	}
	if g.expire(gen) {
		t.Fatal("second expire must not request another notice")
	}
	if !g.enabled() {
		t.Fatal("expire should re-enable input")
	}
}

func TestGateExpireSuppressedAfterResponse(t *testing.T) {
	var g inputGate

	gen, _ := g.trySend()
	g.markResponding()
	if g.expire(gen) {
		t.Fatal("no notice when the agent already responded")
	}
	if !g.enabled() {
		t.Fatal("expire should still re-enable input")
	}
}

func TestGateStaleExpireIgnored(t *testing.T) {
	var g inputGate

	gen1, _ := g.trySend()
	g.enable(gen1)
	if _, ok := g.trySend(); !ok {
		t.Fatal("second send should be accepted")
	}

	if g.expire(gen1) {
		t.Fatal("stale timer must not fire a notice for a later send")
	}
	if g.enabled() {
		t.Fatal("stale timer must not re-enable a later send")
	}
}

func TestGateForceEnable(t *testing.T) {
	var g inputGate

	gen, _ := g.trySend()
	g.forceEnable()
	if !g.enabled() {
		t.Fatal("forceEnable should open the gate")
	}
	if g.expire(gen) {
		t.Fatal("no notice after a forced enable")
	}
}
