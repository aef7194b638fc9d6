// Package protocol is the JSON line protocol spoken on the daemon's control
// socket.
package protocol

import (
	"encoding/json"
	"io"
)

type Action string

const (
	ActionStatus Action = "STATUS"
	ActionKey    Action = "KEY"
)

type Req struct {
	Action Action            `json:"action"`
	Params map[string]string `json:"params"`
}

// KeyReq carries one raw key name, as produced by a keyboard listener.
type KeyReq struct {
	Key string `json:"key"`
}

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

type Res struct {
	Status Status            `json:"status"`
	Error  string            `json:"error"`
	Extras map[string]string `json:"extras"`
}

func ReadReq(r io.Reader) (*Req, error) {
	var req Req
	err := json.NewDecoder(r).Decode(&req)
	return &req, err
}

func ReadRes(r io.Reader) (*Res, error) {
	var res Res
	err := json.NewDecoder(r).Decode(&res)
	return &res, err
}

func ToKeyReq(req *Req) *KeyReq {
	return &KeyReq{Key: req.Params["key"]}
}

func WriteStatusReq(w io.Writer) error {
	return json.NewEncoder(w).Encode(&Req{Action: ActionStatus})
}

func WriteKeyReq(w io.Writer, key string) error {
	req := Req{
		Action: ActionKey,
		Params: map[string]string{
			"key": key,
		},
	}
	return json.NewEncoder(w).Encode(&req)
}

func WriteSuccessRes(w io.Writer, extras map[string]string) error {
	res := Res{
		Status: StatusSuccess,
		Extras: extras,
	}
	return json.NewEncoder(w).Encode(&res)
}

func WriteErrorRes(w io.Writer, err error) error {
	res := Res{
		Status: StatusError,
		Error:  err.Error(),
	}
	return json.NewEncoder(w).Encode(&res)
}
