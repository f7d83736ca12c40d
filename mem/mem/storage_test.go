package mem

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Storage", func() {
	var storage *Storage

	BeforeEach(func() {
		storage = NewStorage(1 * MB)
	})

	It("should read zeros from untouched memory", func() {
		data, err := storage.Read(0x1000, 8)

		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal(make([]byte, 8)))
	})

	It("should read back what is written", func() {
		err := storage.Write(0x40, []byte{1, 2, 3, 4})
		Expect(err).NotTo(HaveOccurred())

		data, err := storage.Read(0x41, 2)

		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte{2, 3}))
	})

	It("should write across units", func() {
		data := make([]byte, 64)
		for i := range data {
			data[i] = byte(i)
		}

		Expect(storage.Write(4*KB-32, data)).To(Succeed())

		readBack, err := storage.Read(4*KB-32, 64)
		Expect(err).NotTo(HaveOccurred())
		Expect(readBack).To(Equal(data))
	})

	It("should return a copy", func() {
		Expect(storage.Write(0, []byte{9})).To(Succeed())

		data, _ := storage.Read(0, 1)
		data[0] = 1

		again, _ := storage.Read(0, 1)
		Expect(again).To(Equal([]byte{9}))
	})

	It("should reject accesses beyond the capacity", func() {
		_, err := storage.Read(1*MB-2, 4)
		Expect(err).To(HaveOccurred())

		err = storage.Write(1*MB, []byte{1})
		Expect(err).To(HaveOccurred())
	})
})
