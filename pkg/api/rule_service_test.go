package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/haolipeng/metadata_rule_matcher/pkg/config"
	"github.com/haolipeng/metadata_rule_matcher/pkg/ruleEngine"
	"github.com/haolipeng/metadata_rule_matcher/pkg/userdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, userData ruleEngine.UserDataStore) (*Server, *ruleEngine.RuleStore) {
	t.Helper()
	cfg := &config.Config{}
	cfg.SetDefaults()

	store := ruleEngine.NewRuleStore(userData)
	server := NewServer(cfg)
	server.RegisterRuleService(NewRuleService(store))
	return server, store
}

func doRequest(t *testing.T, server *Server, method, target, body string) (int, testResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.GetEcho().ServeHTTP(rec, req)

	var resp testResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func TestUpdateAndGetRules(t *testing.T) {
	server, store := newTestServer(t, nil)

	code, resp := doRequest(t, server, http.MethodPut, "/metadataRules",
		`{"r_email":{"k":"email,e-mail","v":"^.+@.+$"},"r_city":{"k":"city"}}`)
	require.Equal(t, http.StatusOK, code)

	var result ruleEngine.UpdateResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, uint64(1), result.Generation)
	assert.Equal(t, 2, result.Installed)
	assert.Len(t, store.GetRules(), 2)

	code, resp = doRequest(t, server, http.MethodGet, "/metadataRules", "")
	require.Equal(t, http.StatusOK, code)

	var rules struct {
		Generation uint64 `json:"generation"`
		Rules      []struct {
			Name     string   `json:"name"`
			KeyRules []string `json:"key_rules"`
			ValRule  string   `json:"val_rule"`
		} `json:"rules"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &rules))
	assert.Equal(t, uint64(1), rules.Generation)
	require.Len(t, rules.Rules, 2)
	assert.Equal(t, "r_email", rules.Rules[0].Name)
	assert.Equal(t, []string{"email", "e-mail"}, rules.Rules[0].KeyRules)
	assert.Equal(t, "^.+@.+$", rules.Rules[0].ValRule)
	assert.Equal(t, "r_city", rules.Rules[1].Name)
}

func TestGetRulesWithFilter(t *testing.T) {
	server, store := newTestServer(t, nil)
	_, err := store.UpdateRules(context.Background(), `{"r_email":{"k":"email"},"r_phone":{"k":"phone,tel"}}`)
	require.NoError(t, err)

	target := "/metadataRules?filter=" + url.QueryEscape(`"tel" in keys`)
	code, resp := doRequest(t, server, http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, code)

	var rules struct {
		Rules []struct {
			Name string `json:"name"`
		} `json:"rules"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &rules))
	require.Len(t, rules.Rules, 1)
	assert.Equal(t, "r_phone", rules.Rules[0].Name)

	target = "/metadataRules?filter=" + url.QueryEscape(`name.startsWith(`)
	code, resp = doRequest(t, server, http.MethodGet, target, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, ErrCodeInvalidFilter, resp.Code)
}

func TestGetRule(t *testing.T) {
	server, store := newTestServer(t, nil)
	_, err := store.UpdateRules(context.Background(), `{"r1":{"k":"a,b","v":"x"}}`)
	require.NoError(t, err)

	code, resp := doRequest(t, server, http.MethodGet, "/metadataRules/r1", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"name":"r1","key_rules":["a","b"],"val_rule":"x"}`, string(resp.Data))

	code, resp = doRequest(t, server, http.MethodGet, "/metadataRules/missing", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, ErrCodeRuleNotFound, resp.Code)
}

func TestUpdateRulesMalformedPayload(t *testing.T) {
	userData := userdata.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, userData.Set(ctx, "r1", "data"))

	server, store := newTestServer(t, userData)
	_, err := store.UpdateRules(ctx, `{"r1":{"k":"a"}}`)
	require.NoError(t, err)

	code, resp := doRequest(t, server, http.MethodPut, "/metadataRules", `{"r1":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, ErrCodeInvalidPayload, resp.Code)

	// 解析失败后规则为空，用户数据保持不变
	assert.Empty(t, store.GetRules())
	assert.Equal(t, uint64(2), store.Generation())
	_, exists, err := userData.Get(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUpdateRulesRemovesOrphanedUserData(t *testing.T) {
	userData := userdata.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, userData.Set(ctx, "r1", "data1"))
	require.NoError(t, userData.Set(ctx, "r2", "data2"))

	server, _ := newTestServer(t, userData)

	code, resp := doRequest(t, server, http.MethodPut, "/metadataRules", `{"r2":{"k":"b"}}`)
	require.Equal(t, http.StatusOK, code)

	var result ruleEngine.UpdateResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, []string{"r1"}, result.Removed)

	keys, err := userData.GetKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, keys)
}

type failingUserData struct{}

func (failingUserData) GetKeys(ctx context.Context) ([]string, error) {
	return nil, assert.AnError
}

func (failingUserData) RemoveByKeys(ctx context.Context, keys []string) error {
	return assert.AnError
}

func TestUpdateRulesReconcileFailure(t *testing.T) {
	server, store := newTestServer(t, failingUserData{})

	code, resp := doRequest(t, server, http.MethodPut, "/metadataRules", `{"r1":{"k":"a"}}`)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, ErrCodeReconcileFailed, resp.Code)

	// 规则已生效
	assert.Len(t, store.GetRules(), 1)
}

func TestGetStats(t *testing.T) {
	server, store := newTestServer(t, nil)
	_, err := store.UpdateRules(context.Background(), `{"r1":{"k":"a"},"bad":{"k":""}}`)
	require.NoError(t, err)

	code, resp := doRequest(t, server, http.MethodGet, "/metadataRules/stats", "")
	require.Equal(t, http.StatusOK, code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.EqualValues(t, 1, stats["generation"])
	assert.EqualValues(t, 1, stats["rule_count"])
	assert.EqualValues(t, 1, stats["skipped_entries"])
}
