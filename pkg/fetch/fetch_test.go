package fetch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-earnings-calendar/pkg/fetch"
)

// MockTransport はテスト用の fetch.ByteFetcher 実装です。
// URLごとの応答を保持し、FetchBytesの呼び出し回数を記録します。
type MockTransport struct {
	mu         sync.Mutex
	pages      map[string][]byte
	fetchError error
	callCount  int

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	delay       time.Duration
}

func (m *MockTransport) FetchBytes(url string, ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	cur := m.inFlight.Add(1)
	for {
		prev := m.maxInFlight.Load()
		if cur <= prev || m.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}
	defer m.inFlight.Add(-1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.fetchError != nil {
		return nil, m.fetchError
	}
	body, ok := m.pages[url]
	if !ok {
		return nil, errors.New("no such page: " + url)
	}
	return body, nil
}

func (m *MockTransport) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

const testURL = "https://kabuyoho.jp/calender?lst=20251119"

func newClient(transport *MockTransport) *fetch.Client {
	return fetch.New(time.Second, 10, fetch.WithTransport(transport))
}

func TestFetch_CacheHit(t *testing.T) {
	transport := &MockTransport{pages: map[string][]byte{
		testURL: []byte("<html><body>page1</body></html>"),
	}}
	client := newClient(transport)
	ctx := context.Background()

	first, err := client.Fetch(ctx, testURL)
	require.NoError(t, err)

	second, err := client.Fetch(ctx, testURL)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, transport.calls(), "2回目の取得はキャッシュから返される必要があります")
	assert.Equal(t, 1, client.CachedCount())
}

// TestFetch_FailureNotCached は、取得失敗がキャッシュされず、
// 次回の呼び出しで再度トランスポートに到達することを確認します。
func TestFetch_FailureNotCached(t *testing.T) {
	transport := &MockTransport{fetchError: errors.New("connection refused")}
	client := newClient(transport)
	ctx := context.Background()

	_, err := client.Fetch(ctx, testURL)
	require.Error(t, err)
	assert.Equal(t, 0, client.CachedCount())

	_, err = client.Fetch(ctx, testURL)
	require.Error(t, err)
	assert.Equal(t, 2, transport.calls())
}

func TestFetch_ErrorClassification(t *testing.T) {
	t.Run("トランスポート失敗はKindTransport", func(t *testing.T) {
		transport := &MockTransport{fetchError: errors.New("connection refused")}
		client := newClient(transport)

		_, err := client.Fetch(context.Background(), testURL)
		require.Error(t, err)

		var fe *fetch.Error
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, fetch.KindTransport, fe.Kind)
		assert.Equal(t, testURL, fe.URL)
		assert.False(t, fetch.IsTimeout(err))
	})

	t.Run("タイムアウトはKindTimeout", func(t *testing.T) {
		transport := &MockTransport{fetchError: context.DeadlineExceeded}
		client := newClient(transport)

		_, err := client.Fetch(context.Background(), testURL)
		require.Error(t, err)
		assert.True(t, fetch.IsTimeout(err))
	})

	t.Run("キャンセル済みコンテキストはKindTimeout", func(t *testing.T) {
		transport := &MockTransport{pages: map[string][]byte{}}
		client := newClient(transport)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.Fetch(ctx, testURL)
		require.Error(t, err)
		assert.True(t, fetch.IsTimeout(err))
	})
}

// TestFetch_ConcurrencyLimit は、同時リクエスト数がセマフォの上限を超えないことを確認します。
func TestFetch_ConcurrencyLimit(t *testing.T) {
	transport := &MockTransport{
		pages: make(map[string][]byte),
		delay: 2 * time.Millisecond,
	}
	for i := 0; i < 20; i++ {
		url := fmt.Sprintf("%s&page=%d", testURL, i)
		transport.pages[url] = []byte("page")
	}

	client := fetch.New(time.Second, 3, fetch.WithTransport(transport))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			url := fmt.Sprintf("%s&page=%d", testURL, n)
			_, err := client.Fetch(ctx, url)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, transport.maxInFlight.Load(), int64(3))
	assert.Equal(t, 20, client.CachedCount())
}

func TestFetchDocument(t *testing.T) {
	t.Run("正常なHTMLはDocumentとして返される", func(t *testing.T) {
		transport := &MockTransport{pages: map[string][]byte{
			testURL: []byte(`<html><body><a href="/reportTop?bcode=1802">大林組</a></body></html>`),
		}}
		client := newClient(transport)

		doc, err := client.FetchDocument(context.Background(), testURL)
		require.NoError(t, err)
		assert.Equal(t, 1, doc.Find("a").Length())
	})

	t.Run("取得失敗はそのまま伝播する", func(t *testing.T) {
		transport := &MockTransport{fetchError: errors.New("connection refused")}
		client := newClient(transport)

		doc, err := client.FetchDocument(context.Background(), testURL)
		assert.Error(t, err)
		assert.Nil(t, doc)
	})
}

func TestNew_Defaults(t *testing.T) {
	// ゼロ以下の値にはデフォルトが適用され、パニックせずに動作する
	transport := &MockTransport{pages: map[string][]byte{testURL: []byte("ok")}}
	client := fetch.New(0, 0, fetch.WithTransport(transport))

	body, err := client.Fetch(context.Background(), testURL)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), body)
}
