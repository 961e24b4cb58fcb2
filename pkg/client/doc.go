// Package client is a small client for OpenAI-compatible chat completion
// servers such as llama.cpp, vLLM or LM Studio.
//
// A Client is composed of services sharing one transport.Session:
//
//	c, err := client.New(client.Config{BaseURL: "http://localhost:8080/v1"})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	models, err := c.Models.List(ctx)
//	completion, err := c.Chat.Completions.Create(ctx, client.Params{...})
//
//	stream, err := c.Chat.Completions.CreateStream(ctx, client.Params{...})
//	if err != nil {
//		return err
//	}
//	for chunk, err := range stream.All() {
//		...
//	}
//
// Streams are pull-based: each call to Stream.Next blocks on the next
// network read. Closing a stream before it is exhausted releases its
// connection. The client never retries.
package client
