package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	getOut *ssm.GetParameterOutput
	getErr error
	lastIn *ssm.GetParameterInput
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.lastIn = in
	return f.getOut, f.getErr
}

func strPtr(s string) *string { return &s }

func paramOut(v string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: strPtr(v)}}
}

func TestGetParameter_HappyPath(t *testing.T) {
	api := &fakeAPI{getOut: paramOut(`{"k":"v"}`)}
	client, err := New(api)
	require.NoError(t, err)
	v, err := client.GetParameter(context.Background(), " p ")
	require.NoError(t, err)
	require.Equal(t, `{"k":"v"}`, v)
	require.Equal(t, "p", *api.lastIn.Name)
	require.True(t, *api.lastIn.WithDecryption)
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: nil}}}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing value")
}

func TestGetParameter_ApiError(t *testing.T) {
	client, err := New(&fakeAPI{getErr: errors.New("boom")})
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "boom")
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	client, err := New(&fakeAPI{})
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func newTokenSource(t *testing.T, api *fakeAPI) *TokenSource {
	t.Helper()
	client, err := New(api)
	require.NoError(t, err)
	ts, err := NewTokenSource(client, "/portfolio/", "groq-token")
	require.NoError(t, err)
	return ts
}

func TestNewTokenSource_Validates(t *testing.T) {
	_, err := NewTokenSource(nil, "/p", "t")
	require.Error(t, err)
	_, err = NewTokenSource(&Client{}, " ", "t")
	require.Error(t, err)
	_, err = NewTokenSource(&Client{}, "/p", "/")
	require.Error(t, err)
}

func TestTokenSource_JSONToken(t *testing.T) {
	api := &fakeAPI{getOut: paramOut(`{"token":"gsk-from-json"}`)}
	ts := newTokenSource(t, api)
	require.Equal(t, "/portfolio/groq-token", ts.Name())

	key, err := ts.APIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "gsk-from-json", key)
	require.Equal(t, "/portfolio/groq-token", *api.lastIn.Name)
}

func TestTokenSource_MissingTokenField(t *testing.T) {
	ts := newTokenSource(t, &fakeAPI{getOut: paramOut(`{"other":"value"}`)})
	_, err := ts.APIKey(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "API token is empty")
}

func TestTokenSource_MalformedJSON(t *testing.T) {
	ts := newTokenSource(t, &fakeAPI{getOut: paramOut(`{"broken`)})
	_, err := ts.APIKey(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unmarshal")
}

func TestTokenSource_GetterError(t *testing.T) {
	ts := newTokenSource(t, &fakeAPI{getErr: errors.New("ssm unavailable")})
	_, err := ts.APIKey(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "ssm unavailable")
}
