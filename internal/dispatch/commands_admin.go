package dispatch

import (
	"context"
	"strconv"
	"strings"

	"redisserver/internal/resp"
)

// cmdConfig implements CONFIG GET name for the three names spec.md §4.5
// recognizes.
func cmdConfig(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if len(args) != 2 {
		return arityError("config|get")
	}
	sub, _ := args[0].AsString()
	if !strings.EqualFold(sub, "GET") {
		return resp.Errorf("ERR unknown CONFIG subcommand '%s'", sub)
	}
	name, _ := args[1].AsString()

	var value string
	switch strings.ToLower(name) {
	case "dir":
		value = d.Config.Dir
	case "dbfilename":
		value = d.Config.DBFilename
	case "port":
		value = strconv.Itoa(d.Config.Port)
	default:
		return resp.NullBulk()
	}
	return resp.Array(resp.BulkString(name), resp.BulkString(value))
}

// cmdInfo implements INFO replication.
func cmdInfo(ctx context.Context, d *Dispatcher, c *Conn, args []resp.Value) resp.Value {
	if d.Repl == nil {
		return resp.BulkString("")
	}
	return resp.BulkString(d.Repl.Info(d.Config.Role.String()))
}
