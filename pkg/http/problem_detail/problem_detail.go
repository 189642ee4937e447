package problem_detail

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
	problemDetailErrors "github.com/Motmedel/csp_go/pkg/http/problem_detail/errors"
	motmedelLogError "github.com/Motmedel/csp_go/pkg/log/error"
	"github.com/google/uuid"
)

const ContentType = "application/problem+json"

type ProblemDetail struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Status   int    `json:"status,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func (problemDetail *ProblemDetail) Bytes() ([]byte, error) {
	if problemDetail == nil {
		return nil, motmedelErrors.NewWithTrace(problemDetailErrors.ErrNilProblemDetail)
	}

	data, err := json.Marshal(problemDetail)
	if err != nil {
		return nil, motmedelErrors.NewWithTrace(fmt.Errorf("json marshal: %w", err), problemDetail)
	}

	return data, nil
}

func (problemDetail *ProblemDetail) String() (string, error) {
	data, err := problemDetail.Bytes()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func MakeStatusCodeProblemDetail(code int, detail string) *ProblemDetail {
	return &ProblemDetail{
		Type:     "about:blank",
		Title:    http.StatusText(code),
		Status:   code,
		Detail:   detail,
		Instance: uuid.New().String(),
	}
}

func MakeInternalServerErrorProblemDetail(detail string) *ProblemDetail {
	return MakeStatusCodeProblemDetail(http.StatusInternalServerError, detail)
}

func MakeBadRequestProblemDetail(detail string) *ProblemDetail {
	return MakeStatusCodeProblemDetail(http.StatusBadRequest, detail)
}

// Write writes the problem detail as the response, with optional extra headers.
func Write(responseWriter http.ResponseWriter, problemDetail *ProblemDetail, logger *slog.Logger, headers ...[2]string) {
	if problemDetail == nil || problemDetail.Status == 0 {
		motmedelLogError.LogError(
			"The error response problem detail is unusable.",
			motmedelErrors.NewWithTrace(problemDetailErrors.ErrNilProblemDetail),
			logger,
		)
		responseWriter.WriteHeader(http.StatusInternalServerError)
		return
	}

	data, err := problemDetail.Bytes()
	if err != nil {
		motmedelLogError.LogError("An error occurred when serializing a problem detail.", err, logger)
		responseWriter.WriteHeader(http.StatusInternalServerError)
		return
	}

	responseWriter.Header().Set("Content-Type", ContentType)
	for _, header := range headers {
		responseWriter.Header().Set(header[0], header[1])
	}
	responseWriter.WriteHeader(problemDetail.Status)

	if _, err := responseWriter.Write(data); err != nil {
		motmedelLogError.LogError("An error occurred when writing the HTTP response body.", err, logger)
	}
}
