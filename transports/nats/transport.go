// Package nats sends and receives JSON:API documents over NATS.
// It uses a chunked streaming protocol so documents of any size are
// encoded straight into the connection and decoded as chunks arrive,
// without holding the whole payload in memory.
package nats

import (
	"io"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/RobertWHurst/jsonapi"
)

const subjectPrefix = "jsonapi"

// SendTimeout is the maximum time to wait for a send acknowledgment.
const SendTimeout = 5 * time.Second

// ChunkTimeout is the maximum time a receiver waits for the next chunk.
const ChunkTimeout = 5 * time.Minute

// ChunkSize is the size of each chunk when streaming a document.
const ChunkSize = 1024 * 16

// MaxDecodeSize limits how many bytes Message.Into reads from a stream.
var MaxDecodeSize = int64(1024 * 1024 * 5) // 5 MB

// Send is the handshake message announcing a document stream.
type Send struct {
	Subject      string `msgpack:"subject"`
	ReplySubject string `msgpack:"replySubject"`
	Format       string `msgpack:"format"`
}

// SendAck is the handshake response naming the subject chunks go to.
type SendAck struct {
	DataSubject string `msgpack:"dataSubject"`
}

// Chunk is a piece of a streamed document with sequencing information.
type Chunk struct {
	Index int    `msgpack:"index"`
	Data  []byte `msgpack:"data,omitempty"`
	Error string `msgpack:"error,omitempty"`
	IsEOF bool   `msgpack:"isEof,omitempty"`
}

// Transport moves encoded documents between NATS subscribers.
type Transport struct {
	NatsConnection *nats.Conn
	Codec          *jsonapi.Codec
	Logger         log.Logger

	mu            sync.Mutex
	subscriptions []*nats.Subscription
}

// NewTransport creates a transport encoding documents with codec.
func NewTransport(natsConnection *nats.Conn, codec *jsonapi.Codec, logger log.Logger) *Transport {
	if codec == nil {
		codec = jsonapi.New()
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Transport{
		NatsConnection: natsConnection,
		Codec:          codec,
		Logger:         logger,
	}
}

// Send encodes v and streams it to the handlers of subject.
func (t *Transport) Send(subject string, v any) error {
	return t.SendWithReply(subject, "", v)
}

// SendWithReply is Send with a reply subject passed through to the handler.
func (t *Transport) SendWithReply(subject, replySubject string, v any) error {
	sendBuf, err := msgpack.Marshal(&Send{
		Subject:      subject,
		ReplySubject: replySubject,
		Format:       t.Codec.Format().Name(),
	})
	if err != nil {
		return errors.Wrap(err, "nats: marshal send")
	}

	sendAckMsg, err := t.NatsConnection.Request(namespace(subject), sendBuf, SendTimeout)
	if err != nil {
		return errors.Wrapf(err, "nats: request %s", subject)
	}

	var sendAck SendAck
	if err := msgpack.Unmarshal(sendAckMsg.Data, &sendAck); err != nil {
		return errors.Wrap(err, "nats: unmarshal send ack")
	}

	pr, pw := io.Pipe()
	defer pr.Close()
	go func() {
		pw.CloseWithError(t.Codec.EncodeTo(pw, v))
	}()

	level.Debug(t.Logger).Log("msg", "streaming document", "subject", subject, "dataSubject", sendAck.DataSubject)
	return writeChunks(pr, func(data []byte) error {
		return t.NatsConnection.Publish(sendAck.DataSubject, data)
	})
}

// writeChunks reads r in ChunkSize pieces and publishes each as a Chunk.
// A read error is forwarded to the receiver as an error chunk.
func writeChunks(r io.Reader, publish func([]byte) error) error {
	buf := make([]byte, ChunkSize)
	index := 0
	for {
		n, err := io.ReadFull(r, buf)
		isEOF := err == io.EOF || err == io.ErrUnexpectedEOF
		if err != nil && !isEOF {
			chunkBuf, mErr := msgpack.Marshal(&Chunk{Index: index, Error: err.Error()})
			if mErr == nil {
				publish(chunkBuf)
			}
			return err
		}

		chunkBuf, err := msgpack.Marshal(&Chunk{
			Index: index,
			Data:  buf[:n],
			IsEOF: isEOF,
		})
		if err != nil {
			return errors.Wrap(err, "nats: marshal chunk")
		}
		if err := publish(chunkBuf); err != nil {
			return errors.Wrap(err, "nats: publish chunk")
		}

		if isEOF {
			return nil
		}
		index++
	}
}

// readChunks copies chunk payloads into pw in order until the final chunk.
func readChunks(next func() ([]byte, error), pw *io.PipeWriter) {
	defer pw.Close()

	expected := 0
	for {
		data, err := next()
		if err != nil {
			pw.CloseWithError(err)
			return
		}

		var chunk Chunk
		if err := msgpack.Unmarshal(data, &chunk); err != nil {
			pw.CloseWithError(errors.Wrap(err, "nats: unmarshal chunk"))
			return
		}
		if chunk.Error != "" {
			pw.CloseWithError(errors.New(chunk.Error))
			return
		}
		if chunk.Index != expected {
			pw.CloseWithError(errors.Errorf("nats: chunk %d out of order, expected %d", chunk.Index, expected))
			return
		}
		expected++

		if _, err := pw.Write(chunk.Data); err != nil {
			pw.CloseWithError(err)
			return
		}
		if chunk.IsEOF {
			return
		}
	}
}

// Handle delivers every document sent to subject to handler. All
// subscribers receive each document.
func (t *Transport) Handle(subject string, handler func(*Message)) error {
	sub, err := t.NatsConnection.Subscribe(namespace(subject), t.receive(handler))
	return t.track(sub, err)
}

// HandleQueue is Handle with load balancing: one subscriber in the queue
// group receives each document.
func (t *Transport) HandleQueue(subject string, handler func(*Message)) error {
	natsSubject := namespace(subject)
	sub, err := t.NatsConnection.QueueSubscribe(natsSubject, natsSubject, t.receive(handler))
	return t.track(sub, err)
}

func (t *Transport) track(sub *nats.Subscription, err error) error {
	if err != nil {
		return errors.Wrap(err, "nats: subscribe")
	}
	t.mu.Lock()
	t.subscriptions = append(t.subscriptions, sub)
	t.mu.Unlock()
	return nil
}

func (t *Transport) receive(handler func(*Message)) nats.MsgHandler {
	return func(natsMsg *nats.Msg) {
		var send Send
		if err := msgpack.Unmarshal(natsMsg.Data, &send); err != nil {
			handler(t.failed(send, errors.Wrap(err, "nats: unmarshal send")))
			return
		}
		if name := t.Codec.Format().Name(); send.Format != "" && send.Format != name {
			handler(t.failed(send, errors.Errorf("nats: sender uses format %q, receiver %q", send.Format, name)))
			return
		}

		dataSubject := nats.NewInbox()
		ackBuf, err := msgpack.Marshal(&SendAck{DataSubject: dataSubject})
		if err != nil {
			handler(t.failed(send, err))
			return
		}

		dataSubscription, err := t.NatsConnection.SubscribeSync(dataSubject)
		if err != nil {
			handler(t.failed(send, err))
			return
		}

		if err := natsMsg.Respond(ackBuf); err != nil {
			dataSubscription.Unsubscribe()
			handler(t.failed(send, err))
			return
		}

		pr, pw := io.Pipe()
		go func() {
			defer dataSubscription.Unsubscribe()
			readChunks(func() ([]byte, error) {
				msg, err := dataSubscription.NextMsg(ChunkTimeout)
				if err != nil {
					return nil, err
				}
				return msg.Data, nil
			}, pw)
		}()

		level.Debug(t.Logger).Log("msg", "receiving document", "subject", send.Subject, "dataSubject", dataSubject)
		handler(&Message{
			Subject:      send.Subject,
			ReplySubject: send.ReplySubject,
			data:         pr,
			codec:        t.Codec,
		})
	}
}

func (t *Transport) failed(send Send, err error) *Message {
	level.Error(t.Logger).Log("msg", "failed to receive document", "subject", send.Subject, "err", err)
	return &Message{Subject: send.Subject, ReplySubject: send.ReplySubject, codec: t.Codec, err: err}
}

// Close removes every subscription made by the transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var err error
	for _, sub := range t.subscriptions {
		if e := sub.Unsubscribe(); e != nil {
			err = e
		}
	}
	t.subscriptions = nil
	return err
}
