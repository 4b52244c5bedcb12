// Package nao embeds the conversational RAG pipeline in a Go program.
//
// Front-ends that live in the same process (a robot controller, a voice loop)
// use it instead of the HTTP server:
//
//	client, err := nao.New(ctx, nao.WithConfigFile("config/local.yaml"))
//	if err != nil { ... }
//	defer client.Close()
//
//	reply, err := client.Ask(ctx, "robot", "When does the library open?")
//	if reply.Farewell { ... }
//	say(reply.Text)
package nao
