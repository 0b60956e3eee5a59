package stage

import (
	"errors"
	"testing"
	"time"
)

func newTestStage(r Rotator) *Stage {
	s := New(KindOptoSigma, r)
	s.PollInterval = time.Millisecond
	s.MoveTimeout = 100 * time.Millisecond
	return s
}

func TestSetAngleNormalizes(t *testing.T) {
	m := &MockRotator{}
	s := newTestStage(m)
	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.SetAngle(370); err != nil {
		t.Fatalf("set angle: %v", err)
	}
	if m.Angle != 10 {
		t.Errorf("driver commanded to %f, expected 10", m.Angle)
	}
	deg, err := s.GetAngle()
	if err != nil {
		t.Fatalf("get angle: %v", err)
	}
	if deg != 10 {
		t.Errorf("got angle %f, expected 10", deg)
	}
}

func TestDisconnectedMoveIsNoOp(t *testing.T) {
	m := &MockRotator{Angle: 45}
	s := newTestStage(m)
	if err := s.SetAngle(90); err != nil {
		t.Errorf("disconnected move returned error %v, expected nil", err)
	}
	if m.Angle != 45 {
		t.Errorf("disconnected move changed driver angle to %f", m.Angle)
	}
	if err := s.Home(); err != nil {
		t.Errorf("disconnected home returned error %v, expected nil", err)
	}
	if m.Homed {
		t.Error("disconnected home reached the driver")
	}
}

func TestDisconnectedGetAngleReturnsLastKnown(t *testing.T) {
	m := &MockRotator{Angle: 120}
	s := newTestStage(m)
	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	s.Disconnect()
	deg, err := s.GetAngle()
	if err != nil {
		t.Fatalf("get angle: %v", err)
	}
	if deg != 120 {
		t.Errorf("got angle %f, expected last known 120", deg)
	}
}

func TestNeverObservedAngleIsZero(t *testing.T) {
	s := newTestStage(&MockRotator{})
	deg, err := s.GetAngle()
	if err != nil {
		t.Fatalf("get angle: %v", err)
	}
	if deg != 0 {
		t.Errorf("got angle %f, expected 0", deg)
	}
}

func TestHomeZeroesAngle(t *testing.T) {
	m := &MockRotator{Angle: 200}
	s := newTestStage(m)
	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Home(); err != nil {
		t.Fatalf("home: %v", err)
	}
	if !m.Homed {
		t.Error("driver was not homed")
	}
	deg, _ := s.GetAngle()
	if deg != 0 {
		t.Errorf("angle after home %f, expected 0", deg)
	}
}

func TestMoveErrorPropagates(t *testing.T) {
	m := &MockRotator{}
	s := newTestStage(m)
	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	boom := errors.New("axis fault")
	m.Err = boom
	if err := s.SetAngle(10); !errors.Is(err, boom) {
		t.Errorf("got error %v, expected %v", err, boom)
	}
}
