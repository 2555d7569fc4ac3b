// Package serialization reads and writes .born checkpoint files.
//
// A .born (version 2) file is laid out as:
//
//	[64 bytes: fixed header]
//	  0x00  magic "BORN"
//	  0x04  version (uint32 LE)
//	  0x08  flags (uint32 LE)
//	  0x10  header size (uint64 LE)
//	  0x18  data size (uint64 LE)
//	  0x20  SHA-256 of the data section
//	[JSON header, zero-padded to a 64-byte boundary]
//	[tensor data: float32 little-endian, tensors in name order]
//
// Example:
//
//	w, err := serialization.NewBornWriter("model.born")
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//	err = w.WriteStateDict(net.StateDict(), serialization.Header{ModelType: "RepVGG"})
//
//	r, err := serialization.NewBornReader("model.born")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	stateDict, err := r.ReadStateDict()
package serialization
