package dispatch

import "redisserver/internal/resp"

// arityError builds the standard "wrong number of arguments" reply, per
// spec.md §7's ArityError taxonomy entry.
func arityError(cmd string) resp.Value {
	return resp.Errorf("ERR wrong number of arguments for '%s' command", cmd)
}

// typeError is spec.md §7's TypeError class, returned when a command is
// applied to a key already holding the other type (a string op on a stream
// key, or vice versa) — the Keyspace and Streams engine key their own maps
// independently, so nothing else would ever catch that collision.
func typeError(cmd string) resp.Value {
	return resp.Errorf("ERR Invalid key for %s", cmd)
}

func unknownCommand(name string) resp.Value {
	return resp.Errorf("ERR unknown command '%s'", name)
}

func unknownOption(opt string) resp.Value {
	return resp.Errorf("ERR Unknown option: %s", opt)
}
