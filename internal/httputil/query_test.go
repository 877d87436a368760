package httputil_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/dominion/internal/httputil"
)

func testContext(url string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, url, nil)
	return c
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected httputil.Page
		errMsg   string
	}{
		{name: "defaults", url: "/", expected: httputil.Page{Offset: 0, Limit: 50}},
		{name: "custom", url: "/?offset=10&limit=20", expected: httputil.Page{Offset: 10, Limit: 20}},
		{name: "max limit", url: "/?limit=100", expected: httputil.Page{Offset: 0, Limit: 100}},
		{name: "negative offset", url: "/?offset=-1", errMsg: "invalid offset parameter"},
		{name: "non-numeric offset", url: "/?offset=abc", errMsg: "invalid offset parameter"},
		{name: "zero limit", url: "/?limit=0", errMsg: "invalid limit parameter"},
		{name: "limit over max", url: "/?limit=101", errMsg: "must be between 1 and 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := httputil.ParsePage(testContext(tt.url))
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, page)
		})
	}
}

func TestApply(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []int{1, 2}, httputil.Apply(httputil.Page{Offset: 0, Limit: 2}, items))
	assert.Equal(t, []int{4, 5}, httputil.Apply(httputil.Page{Offset: 3, Limit: 10}, items))
	assert.Equal(t, []int{}, httputil.Apply(httputil.Page{Offset: 5, Limit: 10}, items))
}

func TestParseWindow(t *testing.T) {
	const max = 30 * 24 * time.Hour

	tests := []struct {
		name     string
		url      string
		expected time.Duration
		wantErr  bool
	}{
		{name: "default", url: "/", expected: 24 * time.Hour},
		{name: "custom", url: "/?window=1h30m", expected: 90 * time.Minute},
		{name: "at max", url: "/?window=720h", expected: max},
		{name: "over max", url: "/?window=721h", wantErr: true},
		{name: "negative", url: "/?window=-1h", wantErr: true},
		{name: "garbage", url: "/?window=soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			window, err := httputil.ParseWindow(testContext(tt.url), "window", 24*time.Hour, max)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid window parameter")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, window)
		})
	}
}
