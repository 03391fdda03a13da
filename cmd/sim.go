/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bytes"
	"strings"
	"sync"
)

// simResponses maps AT commands to the information text the sim modem
// answers with before OK.
var simResponses = map[string]string{
	"AT":        "",
	"ATI":       "modemlink\r\nSIM\r\nRevision: SIM01A01",
	"AT+CGMI":   "modemlink",
	"AT+CGMM":   "SIM",
	"AT+CGSN":   "867698040000001",
	"AT+CSQ":    "+CSQ: 23,99",
	"AT+CPIN?":  "+CPIN: READY",
	"AT+CREG?":  "+CREG: 0,1",
	"AT+CGREG?": "+CGREG: 0,1",
	"AT+COPS?":  `+COPS: 0,0,"modemlink",7`,
}

// simModem returns a SimLine responder that behaves like a modem's AT
// port: it echoes input until ATE0 and answers each CR-terminated command.
func simModem() func(written []byte) []byte {
	var (
		mu      sync.Mutex
		pending []byte
		echo    = true
	)
	return func(written []byte) []byte {
		mu.Lock()
		defer mu.Unlock()

		var out []byte
		if echo {
			out = append(out, written...)
		}
		pending = append(pending, written...)

		for {
			i := bytes.IndexByte(pending, '\r')
			if i < 0 {
				break
			}
			line := strings.ToUpper(strings.TrimSpace(string(pending[:i])))
			pending = pending[i+1:]
			if line == "" {
				continue
			}

			switch line {
			case "ATE0":
				echo = false
				out = append(out, "\r\nOK\r\n"...)
				continue
			case "ATE1":
				echo = true
				out = append(out, "\r\nOK\r\n"...)
				continue
			}

			info, ok := simResponses[line]
			switch {
			case !ok:
				out = append(out, "\r\nERROR\r\n"...)
			case info == "":
				out = append(out, "\r\nOK\r\n"...)
			default:
				out = append(out, "\r\n"+info+"\r\n\r\nOK\r\n"...)
			}
		}
		// LF-only terminals send "\n" after CR; drop it.
		pending = bytes.TrimLeft(pending, "\n")
		return out
	}
}
