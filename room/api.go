package room

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coderoom/coderoom/protocol"
)

const DefaultApiUrl = "http://localhost:8000"
const DefaultWsUrl = "ws://localhost:8000/ws"

const defaultHttpTimeout = 60 * time.Second
const defaultHttpConnectTimeout = 5 * time.Second
const defaultHttpTlsTimeout = 5 * time.Second

func defaultClient() *http.Client {
	// see https://medium.com/@nate510/don-t-use-go-s-default-http-client-4804cb19f779
	dialer := &net.Dialer{
		Timeout: defaultHttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHttpTimeout,
	}
}

type apiCallback[R any] interface {
	Result(result R, err error)
}

// for internal use
type simpleApiCallback[R any] struct {
	callback func(result R, err error)
}

func NewApiCallback[R any](callback func(result R, err error)) apiCallback[R] {
	return &simpleApiCallback[R]{
		callback: callback,
	}
}

func (self *simpleApiCallback[R]) Result(result R, err error) {
	self.callback(result, err)
}

type ApiCallbackResult[R any] struct {
	Result R
	Error  error
}

func NewBlockingApiCallback[R any]() (apiCallback[R], chan ApiCallbackResult[R]) {
	c := make(chan ApiCallbackResult[R], 1)
	apiCallback := NewApiCallback[R](func(result R, err error) {
		c <- ApiCallbackResult[R]{
			Result: result,
			Error:  err,
		}
	})
	return apiCallback, c
}

type ListRoomsCallback apiCallback[[]*protocol.RoomSummary]
type CreateRoomCallback apiCallback[*protocol.Room]
type GetRoomCallback apiCallback[*protocol.Room]
type AutocompleteCallback apiCallback[*protocol.AutocompleteResult]
type RunCallback apiCallback[*protocol.RunResult]

// RoomDirectory lists, creates and reads rooms.
type RoomDirectory interface {
	ListRooms(callback ListRoomsCallback)
	CreateRoom(callback CreateRoomCallback)
	GetRoom(roomId string, callback GetRoomCallback)
}

type SuggestionService interface {
	Autocomplete(args *protocol.AutocompleteArgs, callback AutocompleteCallback)
}

type ExecutionService interface {
	Run(args *protocol.RunArgs, callback RunCallback)
}

// RoomApi is the http client for the room backend. Each call runs on its own goroutine
// and reports to the callback from that goroutine.
type RoomApi struct {
	ctx    context.Context
	cancel context.CancelFunc

	apiUrl string
}

func NewRoomApi(apiUrl string) *RoomApi {
	return NewRoomApiWithContext(context.Background(), apiUrl)
}

func NewRoomApiWithContext(ctx context.Context, apiUrl string) *RoomApi {
	cancelCtx, cancel := context.WithCancel(ctx)

	return &RoomApi{
		ctx:    cancelCtx,
		cancel: cancel,
		apiUrl: strings.TrimRight(apiUrl, "/"),
	}
}

func (self *RoomApi) ListRooms(callback ListRoomsCallback) {
	go get[[]*protocol.RoomSummary](
		self.ctx,
		fmt.Sprintf("%s/rooms", self.apiUrl),
		[]*protocol.RoomSummary{},
		callback,
	)
}

func (self *RoomApi) CreateRoom(callback CreateRoomCallback) {
	go post[*protocol.Room](
		self.ctx,
		fmt.Sprintf("%s/rooms", self.apiUrl),
		nil,
		&protocol.Room{},
		callback,
	)
}

func (self *RoomApi) GetRoom(roomId string, callback GetRoomCallback) {
	go get[*protocol.Room](
		self.ctx,
		fmt.Sprintf("%s/rooms/%s", self.apiUrl, url.PathEscape(roomId)),
		&protocol.Room{},
		callback,
	)
}

func (self *RoomApi) Autocomplete(args *protocol.AutocompleteArgs, callback AutocompleteCallback) {
	go post[*protocol.AutocompleteResult](
		self.ctx,
		fmt.Sprintf("%s/autocomplete", self.apiUrl),
		args,
		&protocol.AutocompleteResult{},
		callback,
	)
}

func (self *RoomApi) Run(args *protocol.RunArgs, callback RunCallback) {
	go post[*protocol.RunResult](
		self.ctx,
		fmt.Sprintf("%s/run", self.apiUrl),
		args,
		&protocol.RunResult{},
		callback,
	)
}

// Close cancels outstanding requests. Their callbacks see the cancel error.
func (self *RoomApi) Close() {
	self.cancel()
}

func post[R any](ctx context.Context, url string, args any, result R, callback apiCallback[R]) (R, error) {
	var requestBodyBytes []byte
	if args == nil {
		requestBodyBytes = make([]byte, 0)
	} else {
		var err error
		requestBodyBytes, err = json.Marshal(args)
		if err != nil {
			var empty R
			callback.Result(empty, err)
			return empty, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(requestBodyBytes))
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	req.Header.Add("Content-Type", "application/json")

	return do(req, result, callback)
}

func get[R any](ctx context.Context, url string, result R, callback apiCallback[R]) (R, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	return do(req, result, callback)
}

func do[R any](req *http.Request, result R, callback apiCallback[R]) (R, error) {
	client := defaultClient()
	r, err := client.Do(req)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}
	defer r.Body.Close()

	responseBodyBytes, err := io.ReadAll(r.Body)

	if http.StatusOK != r.StatusCode && http.StatusCreated != r.StatusCode {
		// the response body is the error message
		errorMessage := strings.TrimSpace(string(responseBodyBytes))
		if errorMessage == "" {
			errorMessage = r.Status
		}
		var empty R
		err = errors.New(errorMessage)
		callback.Result(empty, err)
		return empty, err
	}

	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	err = json.Unmarshal(responseBodyBytes, &result)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	callback.Result(result, nil)
	return result, nil
}
