package api

import (
	"github.com/samcharles93/modelgate/internal/engineaccess"
	"github.com/samcharles93/modelgate/pkg/layout"
)

type ResponseError struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
	// RuntimeStatus is the device runtime return code behind an internal
	// failure.
	RuntimeStatus int32 `json:"runtime_status,omitempty"`
}

type ErrorResponse struct {
	Error ResponseError `json:"error"`
}

// ModelDetail is a registered model and its IO table. The embedded
// description carries the loader id.
type ModelDetail struct {
	Object   string `json:"object"`
	Name     string `json:"name"`
	LoadedAt int64  `json:"loaded_at"`
	engineaccess.Description
}

type ModelList struct {
	Object string        `json:"object"`
	Data   []ModelDetail `json:"data"`
}

// LoadModelRequest is the body of POST /v1/models.
type LoadModelRequest struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Function string `json:"function"`
}

// LayoutRequest is the body of the host layout endpoints.
type LayoutRequest struct {
	DType layout.DataType `json:"dtype"`
	Order layout.DimOrder `json:"order"`
}

type LayoutResponse struct {
	Model     string            `json:"model"`
	Direction string            `json:"direction"`
	Index     int               `json:"index"`
	Host      layout.DataLayout `json:"host"`
}

type StackResponse struct {
	Model   string `json:"model"`
	Changed bool   `json:"changed"`
}

type DeleteModelResponse struct {
	Name    string `json:"name"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}
