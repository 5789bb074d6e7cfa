package wire

// Question is a single DNS question: a name and the type of record
// being asked about. The class is always IN on the wire and is not
// preserved on decode.
type Question struct {
	Name string
	Type QueryType
}

// Read decodes a Question at the buffer's current cursor.
func (q *Question) Read(buf *Buffer) error {
	name, err := readName(buf)
	if err != nil {
		return err
	}
	typ, err := buf.ReadU16()
	if err != nil {
		return err
	}
	if _, err := buf.ReadU16(); err != nil { // class, ignored
		return err
	}
	q.Name = name
	q.Type = UnknownType(typ)
	return nil
}

// Write encodes q to buf, always writing class IN (1).
func (q *Question) Write(buf *Buffer) error {
	if err := writeName(buf, q.Name); err != nil {
		return err
	}
	if err := buf.WriteU16(q.Type.Num()); err != nil {
		return err
	}
	return buf.WriteU16(classIN)
}
