package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"testing"
	"time"

	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	"github.com/stretchr/testify/require"

	"github.com/rbright/medvoice/internal/audio"
)

type fakeStreamer struct {
	calls   int
	body    []byte
	options *interfaces.PreRecordedTranscriptionOptions
	reply   string
	err     error
}

func (f *fakeStreamer) DoStream(ctx context.Context, src io.Reader, options *interfaces.PreRecordedTranscriptionOptions, resBody interface{}) error {
	f.calls++
	f.options = options
	body, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	f.body = body
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("expected request deadline")
	}
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.reply), resBody)
}

func newTestClient(api streamer, cfg Config) *Client {
	return &Client{api: api, cfg: withDefaults(cfg)}
}

func TestTranscribeEmptyPayloadSkipsRequest(t *testing.T) {
	api := &fakeStreamer{}
	client := newTestClient(api, Config{})

	_, err := client.Transcribe(context.Background(), audio.NewPayload(nil, "audio/webm"))
	require.ErrorIs(t, err, ErrNoAudio)
	require.ErrorIs(t, err, audio.ErrEmptyPayload)
	require.Zero(t, api.calls)
}

func TestTranscribeUsesFixedRecognitionOptions(t *testing.T) {
	api := &fakeStreamer{reply: `{"results":{"channels":[{"alternatives":[{"transcript":"Patient reports fever."}]}]}}`}
	client := newTestClient(api, Config{Language: "en-US"})

	text, err := client.Transcribe(context.Background(), audio.NewPayload([]byte{1, 2, 3}, "audio/webm"))
	require.NoError(t, err)
	require.Equal(t, "Patient reports fever.", text)

	require.Equal(t, 1, api.calls)
	require.Equal(t, []byte{1, 2, 3}, api.body)
	require.Equal(t, "nova-3", api.options.Model)
	require.Equal(t, "en-US", api.options.Language)
	require.True(t, api.options.SmartFormat)
	require.True(t, api.options.Punctuate)
	require.True(t, api.options.Paragraphs)
	require.True(t, api.options.Diarize)
	require.Empty(t, api.options.Encoding)
}

func TestTranscribeDeclaresRawPCMEncoding(t *testing.T) {
	api := &fakeStreamer{reply: `{"results":{"channels":[]}}`}
	client := newTestClient(api, Config{})

	text, err := client.Transcribe(context.Background(), audio.NewPayload([]byte{0, 0}, audio.PCMMediaType(16000)))
	require.NoError(t, err)
	require.Empty(t, text)
	require.Equal(t, "linear16", api.options.Encoding)
	require.Equal(t, 16000, api.options.SampleRate)
	require.Equal(t, 1, api.options.Channels)
}

func TestTranscribeLabelsDiarizedParagraphs(t *testing.T) {
	api := &fakeStreamer{reply: `{"results":{"channels":[{"alternatives":[{
		"transcript":"What brings you in? I have a fever.",
		"paragraphs":{"paragraphs":[
			{"speaker":0,"sentences":[{"text":"What brings you in?"}]},
			{"speaker":1,"sentences":[{"text":"I have a fever."},{"text":"Since Monday."}]}
		]}}]}]}}`}
	client := newTestClient(api, Config{LabelSpeakers: true})

	text, err := client.Transcribe(context.Background(), audio.NewPayload([]byte{1}, "audio/wav"))
	require.NoError(t, err)
	require.Equal(t, "Speaker 0: What brings you in?\n\nSpeaker 1: I have a fever. Since Monday.", text)
}

func TestTranscribeWrapsTransportErrors(t *testing.T) {
	cause := &url.Error{Op: "Post", URL: "https://api.deepgram.com/v1/listen", Err: errors.New("dial tcp: lookup failed")}
	api := &fakeStreamer{err: cause}
	client := newTestClient(api, Config{Timeout: time.Second})

	_, err := client.Transcribe(context.Background(), audio.NewPayload([]byte{1}, "audio/webm"))
	require.Error(t, err)

	var urlErr *url.Error
	require.ErrorAs(t, err, &urlErr)
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, nil)
	require.ErrorIs(t, err, ErrMissingAPIKey)

	client, err := New(Config{APIKey: "dg-test", Host: "https://dg.example.test"}, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultModel, client.cfg.Model)
	require.Equal(t, DefaultTimeout, client.cfg.Timeout)
}
