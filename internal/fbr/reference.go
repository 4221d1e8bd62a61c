package fbr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Reference-data types. The unusual JSON keys are the authority's.

type Province struct {
	Code        int    `json:"stateProvinceCode"`
	Description string `json:"stateProvinceDesc"`
}

type HSCode struct {
	Code        string `json:"hS_CODE"`
	Description string `json:"description"`
}

type UoM struct {
	ID          int    `json:"uoM_ID"`
	Description string `json:"description"`
}

type TransactionType struct {
	ID          int    `json:"transactioN_TYPE_ID"`
	Description string `json:"transactioN_DESC"`
}

func (c *Client) Provinces(ctx context.Context) ([]Province, error) {
	return getReference[Province](ctx, c, "/pdi/v1/provinces", nil)
}

func (c *Client) HSCodes(ctx context.Context) ([]HSCode, error) {
	return getReference[HSCode](ctx, c, "/pdi/v1/itemdesccode", nil)
}

func (c *Client) UnitsOfMeasure(ctx context.Context) ([]UoM, error) {
	return getReference[UoM](ctx, c, "/pdi/v1/uom", nil)
}

func (c *Client) TransactionTypes(ctx context.Context) ([]TransactionType, error) {
	return getReference[TransactionType](ctx, c, "/pdi/v1/transtypecode", nil)
}

// HSUoM lists the units of measure permitted for one HS code.
func (c *Client) HSUoM(ctx context.Context, hsCode string) ([]UoM, error) {
	params := url.Values{}
	params.Set("hs_code", hsCode)
	params.Set("annexure_id", "3")

	return getReference[UoM](ctx, c, "/pdi/v2/HS_UOM", params)
}

func getReference[T any](ctx context.Context, c *Client, path string, params url.Values) ([]T, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "fetching " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{
			Op:  "fetching " + path,
			Err: fmt.Errorf("unexpected status code %d", resp.StatusCode),
		}
	}

	var out []T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", path, err)
	}

	return out, nil
}
