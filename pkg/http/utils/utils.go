package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
	motmedelHttpErrors "github.com/Motmedel/csp_go/pkg/http/errors"
)

// MaxResponseBodySize bounds how much of a response body is read.
const MaxResponseBodySize = 1 << 20

func handleRequest(request *http.Request, httpClient *http.Client) (*http.Response, []byte, error) {
	response, err := httpClient.Do(request)
	if err != nil {
		return nil, nil, &motmedelErrors.Error{
			Message: "An error occurred when performing the request.",
			Cause:   err,
		}
	}
	if response == nil {
		return nil, nil, motmedelErrors.NewWithTrace(motmedelHttpErrors.ErrNilHttpResponse)
	}

	responseBody := response.Body
	defer func() {
		if err := responseBody.Close(); err != nil {
			slog.Warn(fmt.Sprintf("close response body: %v", err))
		}
	}()

	responseBodyData, err := io.ReadAll(io.LimitReader(responseBody, MaxResponseBodySize))
	if err != nil {
		return response, nil, &motmedelErrors.Error{
			Message: "An error occurred when reading the response body.",
			Cause:   err,
		}
	}

	return response, responseBodyData, nil
}

// SendRequest performs a single request. There are no retries; a non-2xx
// status is an error.
func SendRequest(
	ctx context.Context,
	httpClient *http.Client,
	method string,
	url string,
	requestBody []byte,
	addToRequest func(*http.Request) error,
) (*http.Response, []byte, error) {
	if httpClient == nil {
		return nil, nil, motmedelErrors.NewWithTrace(motmedelHttpErrors.ErrNilHttpClient)
	}

	if method == "" {
		return nil, nil, motmedelErrors.NewWithTrace(motmedelHttpErrors.ErrEmptyMethod)
	}

	if url == "" {
		return nil, nil, motmedelErrors.NewWithTrace(motmedelHttpErrors.ErrEmptyUrl)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, nil, motmedelErrors.NewWithTrace(fmt.Errorf("http new request: %w", err), method, url)
	}

	if addToRequest != nil {
		if err = addToRequest(request); err != nil {
			return nil, nil, motmedelErrors.New(fmt.Errorf("add to request: %w", err), request)
		}
	}

	response, responseBody, err := handleRequest(request, httpClient)
	if err != nil {
		return nil, nil, motmedelErrors.New(fmt.Errorf("handle request: %w", err), method, url)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return response, responseBody, motmedelErrors.NewWithTrace(
			&motmedelHttpErrors.Non2xxStatusCodeError{StatusCode: response.StatusCode},
		)
	}

	return response, responseBody, nil
}
