package airflow

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

type versionInfo struct {
	Version    string `json:"version"`
	GitVersion string `json:"git_version"`
}

// Version returns the deployment's Airflow version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var info versionInfo
	if err := c.do(ctx, http.MethodGet, "/version", nil, &info); err != nil {
		return "", err
	}
	return info.Version, nil
}

type configValueResponse struct {
	Sections []struct {
		Name    string `json:"name"`
		Options []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"options"`
	} `json:"sections"`
}

// ConfigValue reads one value from the deployment's airflow.cfg. The
// webserver must expose configuration; locked-down deployments answer 403 and
// the caller treats the fact as unknown.
func (c *Client) ConfigValue(ctx context.Context, section, option string) (string, error) {
	path := fmt.Sprintf("/config/section/%s/option/%s", section, option)
	var resp configValueResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	for _, s := range resp.Sections {
		for _, o := range s.Options {
			if strings.EqualFold(o.Key, option) {
				return o.Value, nil
			}
		}
	}
	return "", fmt.Errorf("airflow: config option %s/%s not present in response", section, option)
}

type providerList struct {
	Providers []struct {
		PackageName string `json:"package_name"`
		Version     string `json:"version"`
	} `json:"providers"`
	TotalEntries int `json:"total_entries"`
}

// ProviderVersion returns the installed version of the named provider
// distribution. Exact package names match first; a substring match covers
// distributions registered under a longer name.
func (c *Client) ProviderVersion(ctx context.Context, name string) (string, error) {
	var list providerList
	if err := c.do(ctx, http.MethodGet, "/providers", nil, &list); err != nil {
		return "", err
	}
	for _, p := range list.Providers {
		if p.PackageName == name {
			return p.Version, nil
		}
	}
	for _, p := range list.Providers {
		if strings.Contains(p.PackageName, name) {
			return p.Version, nil
		}
	}
	return "", fmt.Errorf("airflow: provider %q is not installed", name)
}
