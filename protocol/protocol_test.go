package protocol

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
)

func TestKeyRequest(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteKeyReq(&buf, "Return:36"); err != nil {
		t.Fatal(err)
	}
	req, err := ReadReq(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if req.Action != ActionKey {
		t.Errorf("action = %q", req.Action)
	}
	if key := ToKeyReq(req).Key; key != "Return:36" {
		t.Errorf("key = %q", key)
	}
}

func TestStatusRequest(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteStatusReq(&buf); err != nil {
		t.Fatal(err)
	}
	req, err := ReadReq(&buf)
	if err != nil || req.Action != ActionStatus {
		t.Errorf("req = %+v, err = %v", req, err)
	}
}

func TestResponses(t *testing.T) {
	tests := []struct {
		name  string
		write func(*bytes.Buffer) error
		want  Res
	}{
		{
			name:  "success",
			write: func(b *bytes.Buffer) error { return WriteSuccessRes(b, map[string]string{"present": "ana"}) },
			want:  Res{Status: StatusSuccess, Extras: map[string]string{"present": "ana"}},
		},
		{
			name:  "error",
			write: func(b *bytes.Buffer) error { return WriteErrorRes(b, errors.New("boom")) },
			want:  Res{Status: StatusError, Error: "boom"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.write(&buf); err != nil {
				t.Fatal(err)
			}
			res, err := ReadRes(&buf)
			if err != nil {
				t.Fatal(err)
			}
			if res.Status != tt.want.Status || res.Error != tt.want.Error || res.Extras["present"] != tt.want.Extras["present"] {
				t.Errorf("res = %+v, want %+v", res, tt.want)
			}
		})
	}
}
