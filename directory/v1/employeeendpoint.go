package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"axiapac.com/presence/directory/v1/common"
	"axiapac.com/presence/presence/core"
)

type OfficeDTO struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	MaxDistanceMeters float64 `json:"maxDistanceMeters"`
}

type EmployeeEndpoint struct {
	transport *Transport
}

func (e *EmployeeEndpoint) Office(ctx context.Context, employeeID string) (*OfficeDTO, error) {
	path := fmt.Sprintf("/api/v1/employees/%s/office", url.PathEscape(employeeID))
	resp, err := e.transport.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("office for employee %s: %w", employeeID, core.ErrNotFound)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("GET %s failed with status code %d: %s", path, resp.StatusCode, string(resp.Data))
	}

	var result common.StatusAPIResponse[*OfficeDTO]
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode office response: %w", err)
	}
	if !result.Status || result.Data == nil {
		return nil, fmt.Errorf("office for employee %s: %v", employeeID, result.Error)
	}
	return result.Data, nil
}
