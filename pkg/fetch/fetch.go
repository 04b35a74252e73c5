package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shouni/go-http-kit/pkg/httpkit"
)

// ----------------------------------------------------------------------
// 定数とインターフェース
// ----------------------------------------------------------------------

const (
	// DefaultRequestTimeout は、1リクエストあたりのデフォルトタイムアウトです。
	DefaultRequestTimeout = 30 * time.Second
	// DefaultMaxConcurrency は、システム全体の同時リクエスト数の上限です。
	DefaultMaxConcurrency = 10
	// DefaultMaxRetries は、トランスポート層のリトライ回数です。
	DefaultMaxRetries = 2
)

// ByteFetcher は、HTMLドキュメントの生バイト配列を取得する機能のインターフェースを定義します。
// httpkit.Client がこのインターフェースを満たします。Client はこの抽象に依存します。
type ByteFetcher interface {
	FetchBytes(url string, ctx context.Context) ([]byte, error)
}

// ----------------------------------------------------------------------
// エラー型
// ----------------------------------------------------------------------

// Kind は取得失敗の分類を表します。
type Kind int

const (
	// KindTimeout はリクエストタイムアウトを示します。
	KindTimeout Kind = iota + 1
	// KindTransport は接続・DNS・HTTPステータス等のトランスポート失敗を示します。
	KindTransport
)

// Error は1回の取得失敗を表す型付きエラーです。
// 呼び出し元は失敗を「このURLのデータなし」として扱い、処理を継続できます。
type Error struct {
	URL  string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("URL(%s)の取得がタイムアウトしました: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("URL(%s)の取得に失敗しました: %v", e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsTimeout は与えられたエラーがタイムアウト起因の取得失敗かどうかを判断します。
func IsTimeout(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindTimeout
}

// ----------------------------------------------------------------------
// キャッシュ付きクライアント
// ----------------------------------------------------------------------

// Client は、実行スコープのキャッシュとセマフォによる同時実行制限を備えた
// ドキュメント取得クライアントです。キャッシュは実行中に破棄・無効化されません
// （1回のバッチジョブが寿命であるため、無制限でも許容されます）。
type Client struct {
	transport  ByteFetcher
	timeout    time.Duration
	maxRetries uint64
	semaphore  chan struct{}

	mu    sync.RWMutex
	cache map[string][]byte
}

// Option は Client の設定を行うための関数型です。
type Option func(*Client)

// WithTransport はカスタムの ByteFetcher を設定します（主にテスト用）。
func WithTransport(t ByteFetcher) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithMaxRetries はトランスポート層の最大リトライ回数を設定します。
func WithMaxRetries(max uint64) Option {
	return func(c *Client) {
		c.maxRetries = max
	}
}

// New は新しい Client を初期化します。
// transport が指定されない場合、httpkit.New によるリトライ付きクライアントを使用します。
// httpkit 側が User-Agent ヘッダーと圧縮転送（透過的な展開を含む）を処理します。
func New(timeout time.Duration, maxConcurrency int, options ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}

	c := &Client{
		timeout:    timeout,
		maxRetries: DefaultMaxRetries,
		semaphore:  make(chan struct{}, maxConcurrency),
		cache:      make(map[string][]byte),
	}

	for _, opt := range options {
		opt(c)
	}

	if c.transport == nil {
		c.transport = httpkit.New(timeout, httpkit.WithMaxRetries(c.maxRetries))
	}

	return c
}

// Fetch は指定されたURLの生ドキュメントを返します。
// 既に取得済みのURLは、ネットワークアクセスなしでキャッシュから返されます。
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if body, ok := c.lookup(url); ok {
		return body, nil
	}

	// セマフォでシステム全体の同時リクエスト数を制限する
	select {
	case c.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, c.classify(url, ctx.Err())
	}
	defer func() { <-c.semaphore }()

	// セマフォ待機中に他のGoroutineが同じURLを取得済みの可能性がある
	if body, ok := c.lookup(url); ok {
		return body, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.transport.FetchBytes(url, reqCtx)
	if err != nil {
		return nil, c.classify(url, err)
	}

	c.store(url, body)
	return body, nil
}

// FetchDocument はURLのドキュメントを取得し、goquery.Document として返します。
func (c *Client) FetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("HTML解析に失敗しました (URL: %s): %w", url, err)
	}
	return doc, nil
}

// CachedCount は、キャッシュに保持されているドキュメント数を返します。
func (c *Client) CachedCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func (c *Client) lookup(url string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	body, ok := c.cache[url]
	return body, ok
}

func (c *Client) store(url string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[url] = body
}

// classify はエラーを Error 型に分類します。
func (c *Client) classify(url string, err error) *Error {
	kind := KindTransport
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = KindTimeout
	}
	return &Error{URL: url, Kind: kind, Err: err}
}
