package protocol

// This file implements the typed encode/decode half of the wire protocol:
// the frontend messages the client emits and the backend messages it
// consumes. Each encoder frames one complete message and hands it to the
// Writer's underlying io.Writer via End; each decoder parses the payload
// already loaded into the Reader by ReadBackendMessage.

// --- frontend encoders -----------------------------------------------------

// WriteStartup encodes the startup message: protocol version followed by an
// ordered sequence of key/value options terminated by an empty key.
// Startup carries no type byte.
func WriteStartup(w *Writer, version Version, options [][2]string) error {
	w.StartUntyped()
	w.AddUint32(uint32(version))
	for _, kv := range options {
		w.AddCString(kv[0])
		w.AddCString(kv[1])
	}
	w.AddNullTerminate()
	return w.End()
}

// WriteSSLRequest encodes the pre-startup SSLRequest frame.
func WriteSSLRequest(w *Writer) error {
	w.StartUntyped()
	w.AddUint32(uint32(VersionSSL))
	return w.End()
}

// WriteCancelRequest encodes the out-of-band CancelRequest frame.
func WriteCancelRequest(w *Writer, pid, secretKey int32) error {
	w.StartUntyped()
	w.AddUint32(uint32(VersionCancel))
	w.AddInt32(pid)
	w.AddInt32(secretKey)
	return w.End()
}

// WritePasswordMessage encodes a PasswordMessage carrying either a cleartext
// or MD5-hashed password, per whichever the backend requested.
func WritePasswordMessage(w *Writer, password string) error {
	w.Start(FrontendPassword)
	w.AddCString(password)
	return w.End()
}

// WriteSASLInitialResponse encodes the first message of a SASL exchange.
func WriteSASLInitialResponse(w *Writer, mechanism string, data []byte) error {
	w.Start(FrontendPassword)
	w.AddCString(mechanism)
	if data == nil {
		w.AddInt32(-1)
	} else {
		w.AddInt32(int32(len(data)))
		w.AddBytes(data)
	}
	return w.End()
}

// WriteSASLResponse encodes a subsequent SASL exchange message.
func WriteSASLResponse(w *Writer, data []byte) error {
	w.Start(FrontendPassword)
	w.AddBytes(data)
	return w.End()
}

// WriteParse encodes a Parse message: a statement name, its query text, and
// the (possibly empty) vector of parameter type OIDs the caller wants
// pre-specified.
func WriteParse(w *Writer, name, query string, paramOIDs []uint32) error {
	w.Start(FrontendParse)
	w.AddCString(name)
	w.AddCString(query)
	w.AddInt16(int16(len(paramOIDs)))
	for _, oid := range paramOIDs {
		w.AddUint32(oid)
	}
	return w.End()
}

// WriteBind encodes a Bind message binding a statement to a named (or
// unnamed) portal, with one format code and value per parameter and one
// format code per result column.
func WriteBind(w *Writer, portal, statement string, paramFormats []FormatCode, paramValues [][]byte, resultFormats []FormatCode) error {
	w.Start(FrontendBind)
	w.AddCString(portal)
	w.AddCString(statement)

	w.AddInt16(int16(len(paramFormats)))
	for _, f := range paramFormats {
		w.AddInt16(int16(f))
	}

	w.AddInt16(int16(len(paramValues)))
	for _, v := range paramValues {
		if v == nil {
			w.AddInt32(-1)
			continue
		}
		w.AddInt32(int32(len(v)))
		w.AddBytes(v)
	}

	w.AddInt16(int16(len(resultFormats)))
	for _, f := range resultFormats {
		w.AddInt16(int16(f))
	}

	return w.End()
}

// WriteDescribe encodes a Describe message for either a statement or a
// portal.
func WriteDescribe(w *Writer, target DescribeTarget, name string) error {
	w.Start(FrontendDescribe)
	w.AddByte(byte(target))
	w.AddCString(name)
	return w.End()
}

// WriteExecute encodes an Execute message. maxRows of 0 means "no limit".
func WriteExecute(w *Writer, portal string, maxRows uint32) error {
	w.Start(FrontendExecute)
	w.AddCString(portal)
	w.AddUint32(maxRows)
	return w.End()
}

// WriteClose encodes a Close message for either a statement or a portal.
func WriteClose(w *Writer, target CloseTarget, name string) error {
	w.Start(FrontendClose)
	w.AddByte(byte(target))
	w.AddCString(name)
	return w.End()
}

// WriteQuery encodes a simple-query message.
func WriteQuery(w *Writer, query string) error {
	w.Start(FrontendSimpleQuery)
	w.AddCString(query)
	return w.End()
}

// WriteCopyData encodes a chunk of copy-in payload.
func WriteCopyData(w *Writer, data []byte) error {
	w.Start(FrontendCopyData)
	w.AddBytes(data)
	return w.End()
}

// WriteCopyDone encodes the copy-in terminator message.
func WriteCopyDone(w *Writer) error {
	w.Start(FrontendCopyDone)
	return w.End()
}

// WriteCopyFail encodes an abort-the-copy message carrying a human-readable
// reason.
func WriteCopyFail(w *Writer, reason string) error {
	w.Start(FrontendCopyFail)
	w.AddCString(reason)
	return w.End()
}

// WriteSync encodes the resynchronization barrier message.
func WriteSync(w *Writer) error {
	w.Start(FrontendSync)
	return w.End()
}

// WriteTerminate encodes the graceful connection-close message.
func WriteTerminate(w *Writer) error {
	w.Start(FrontendTerminate)
	return w.End()
}

// --- backend decoders --------------------------------------------------

// AuthMessage is the decoded body of an AuthenticationXXX backend message.
type AuthMessage struct {
	Type Type
	// Salt carries the four-byte MD5 salt for AuthMD5Password.
	Salt [4]byte
	// Mechanisms carries the SASL mechanism list for AuthSASL.
	Mechanisms []string
	// Data carries the continuation/outcome payload for
	// AuthSASLContinue/AuthSASLFinal.
	Data []byte
}

// Type is an alias retained so AuthMessage reads naturally as "the type of
// auth message"; it is identical to AuthType.
type Type = AuthType

// ParseAuthMessage decodes the payload of a BackendAuth message already
// positioned in r.Msg.
func ParseAuthMessage(r *Reader) (AuthMessage, error) {
	code, err := r.GetUint32()
	if err != nil {
		return AuthMessage{}, err
	}

	msg := AuthMessage{Type: AuthType(code)}

	switch msg.Type {
	case AuthOK, AuthCleartextPassword, AuthKerberosV5, AuthSCMCredential, AuthGSS, AuthSSPI:
		// no further payload
	case AuthMD5Password:
		salt, err := r.GetBytes(4)
		if err != nil {
			return msg, err
		}
		copy(msg.Salt[:], salt)
	case AuthSASL:
		for {
			mech, err := r.GetString()
			if err != nil {
				return msg, err
			}
			if mech == "" {
				break
			}
			msg.Mechanisms = append(msg.Mechanisms, mech)
		}
	case AuthSASLContinue, AuthSASLFinal, AuthGSSContinue:
		msg.Data = append([]byte(nil), r.Msg...)
		r.Msg = nil
	}

	return msg, nil
}

// ParameterStatus is the decoded body of a ParameterStatus backend message.
type ParameterStatus struct {
	Name  string
	Value string
}

func ParseParameterStatus(r *Reader) (ParameterStatus, error) {
	name, err := r.GetString()
	if err != nil {
		return ParameterStatus{}, err
	}
	value, err := r.GetString()
	if err != nil {
		return ParameterStatus{}, err
	}
	return ParameterStatus{Name: name, Value: value}, nil
}

// BackendKeyData is the decoded body of a BackendKeyData backend message.
type BackendKeyData struct {
	ProcessID int32
	SecretKey int32
}

func ParseBackendKeyData(r *Reader) (BackendKeyData, error) {
	pid, err := r.GetInt32()
	if err != nil {
		return BackendKeyData{}, err
	}
	secret, err := r.GetInt32()
	if err != nil {
		return BackendKeyData{}, err
	}
	return BackendKeyData{ProcessID: pid, SecretKey: secret}, nil
}

// ParseReadyForQuery decodes the single transaction-status byte.
func ParseReadyForQuery(r *Reader) (TransactionStatus, error) {
	b, err := r.GetByte()
	return TransactionStatus(b), err
}

// ParseParameterDescription decodes the ordered vector of parameter type
// OIDs a prepared statement expects.
func ParseParameterDescription(r *Reader) ([]uint32, error) {
	n, err := r.GetUint16()
	if err != nil {
		return nil, err
	}

	oids := make([]uint32, n)
	for i := range oids {
		oids[i], err = r.GetUint32()
		if err != nil {
			return nil, err
		}
	}
	return oids, nil
}

// FieldDescription describes a single result column, as carried by
// RowDescription.
type FieldDescription struct {
	Name         string
	TableOID     uint32
	TableAttrNo  int16
	DataTypeOID  uint32
	DataTypeSize int16
	TypeModifier int32
	Format       FormatCode
}

// ParseRowDescription decodes the ordered vector of result-column
// descriptions.
func ParseRowDescription(r *Reader) ([]FieldDescription, error) {
	n, err := r.GetUint16()
	if err != nil {
		return nil, err
	}

	fields := make([]FieldDescription, n)
	for i := range fields {
		fields[i].Name, err = r.GetString()
		if err != nil {
			return nil, err
		}
		fields[i].TableOID, err = r.GetUint32()
		if err != nil {
			return nil, err
		}
		attrNo, err := r.GetInt16()
		if err != nil {
			return nil, err
		}
		fields[i].TableAttrNo = attrNo
		fields[i].DataTypeOID, err = r.GetUint32()
		if err != nil {
			return nil, err
		}
		size, err := r.GetInt16()
		if err != nil {
			return nil, err
		}
		fields[i].DataTypeSize = size
		fields[i].TypeModifier, err = r.GetInt32()
		if err != nil {
			return nil, err
		}
		format, err := r.GetInt16()
		if err != nil {
			return nil, err
		}
		fields[i].Format = FormatCode(format)
	}

	return fields, nil
}

// ParseDataRow decodes a row of column values. A nil element denotes SQL
// NULL; ownership of every non-nil slice transfers to the caller.
func ParseDataRow(r *Reader) ([][]byte, error) {
	n, err := r.GetUint16()
	if err != nil {
		return nil, err
	}

	values := make([][]byte, n)
	for i := range values {
		length, err := r.GetInt32()
		if err != nil {
			return nil, err
		}
		if length == -1 {
			continue
		}
		raw, err := r.GetBytes(int(length))
		if err != nil {
			return nil, err
		}
		values[i] = append([]byte(nil), raw...)
	}

	return values, nil
}

// CopyInResponse is the decoded body of a CopyInResponse backend message.
type CopyInResponse struct {
	OverallFormat FormatCode
	ColumnFormats []FormatCode
}

func ParseCopyInResponse(r *Reader) (CopyInResponse, error) {
	format, err := r.GetByte()
	if err != nil {
		return CopyInResponse{}, err
	}

	n, err := r.GetUint16()
	if err != nil {
		return CopyInResponse{}, err
	}

	columns := make([]FormatCode, n)
	for i := range columns {
		f, err := r.GetInt16()
		if err != nil {
			return CopyInResponse{}, err
		}
		columns[i] = FormatCode(f)
	}

	return CopyInResponse{OverallFormat: FormatCode(format), ColumnFormats: columns}, nil
}

// ParseCommandComplete decodes the human-readable command tag.
func ParseCommandComplete(r *Reader) (string, error) {
	return r.GetString()
}

// NotificationResponse is the decoded body of a NotificationResponse
// backend message.
type NotificationResponse struct {
	ProcessID int32
	Channel   string
	Payload   string
}

func ParseNotificationResponse(r *Reader) (NotificationResponse, error) {
	pid, err := r.GetInt32()
	if err != nil {
		return NotificationResponse{}, err
	}
	channel, err := r.GetString()
	if err != nil {
		return NotificationResponse{}, err
	}
	payload, err := r.GetString()
	if err != nil {
		return NotificationResponse{}, err
	}
	return NotificationResponse{ProcessID: pid, Channel: channel, Payload: payload}, nil
}

// ParseFields decodes the repeated (byte-code, C-string) sequence shared
// by NoticeResponse and ErrorResponse, terminated by a zero byte.
func ParseFields(r *Reader) (map[byte]string, error) {
	fields := make(map[byte]string)
	for {
		code, err := r.GetByte()
		if err != nil {
			return nil, err
		}
		if code == 0 {
			break
		}
		value, err := r.GetString()
		if err != nil {
			return nil, err
		}
		fields[code] = value
	}
	return fields, nil
}
