package testcontext

import (
	"context"
	"database/sql"

	"github.com/ptgott/e2ekit/amqpclient"
	"github.com/ptgott/e2ekit/sqlclient"
	"github.com/ptgott/e2ekit/vtom"
)

// VtomParameter is the shape of an environment parameter describing a Vtom
// API.
type VtomParameter struct {
	URL         string `json:"url"`
	APIKey      string `json:"apiKey"`
	Environment string `json:"environment"`
}

func (tc *TestContext) stringParameter(name string) (string, error) {
	v, err := tc.GetParameter(name, true)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", configErrorf("parameter %q of the %q environment must be a non-empty string", name, tc.EnvironmentName())
	}
	return s, nil
}

// PublishMessage publishes m on the broker whose URL is the parameter
// called parameterName.
func (tc *TestContext) PublishMessage(ctx context.Context, parameterName string, m amqpclient.Message) error {
	url, err := tc.stringParameter(parameterName)
	if err != nil {
		return err
	}
	return amqpclient.Publish(ctx, url, m, tc.authorities.TLSConfig())
}

// ExecuteSQL calls fn with the database whose connection string is the
// parameter called parameterName. Encrypted connections trust the suite's
// certificate authorities.
func ExecuteSQL[T any](ctx context.Context, tc *TestContext, parameterName string, fn func(context.Context, *sql.DB) (T, error)) (T, error) {
	conn, err := tc.stringParameter(parameterName)
	if err != nil {
		var zero T
		return zero, err
	}
	return sqlclient.Execute(ctx, conn, tc.authorities.TLSConfig(), fn)
}

// RunVtomJob runs a job of the Vtom API described by the parameter called
// parameterName, and reports whether it finished.
func (tc *TestContext) RunVtomJob(ctx context.Context, parameterName, app, job string, opts ...vtom.Option) (bool, error) {
	v, err := tc.GetParameter(parameterName, true)
	if err != nil {
		return false, err
	}
	var p VtomParameter
	m, err := toJSONObject(v)
	if err == nil {
		err = decodeInto(m, &p)
	}
	if err != nil || p.URL == "" || p.Environment == "" {
		return false, configErrorf("parameter %q must hold the url, apiKey and environment of a Vtom API", parameterName)
	}
	return vtom.NewClient(p.URL, p.APIKey, opts...).RunJob(ctx, p.Environment, app, job)
}
